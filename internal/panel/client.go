// Package panel реализует клиент REST API панели управления доступом.
// Панель является системой записи для фактического сетевого доступа:
// клиент создаёт и обновляет учётные записи, назначает squad-группы,
// лимит трафика и дату окончания.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUserNotFound учётная запись отсутствует на панели.
var ErrUserNotFound = errors.New("panel user not found")

// APIError ошибка панели с HTTP-статусом.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("panel api error: status %d: %s", e.Status, e.Body)
}

// IsTransient сообщает, имеет ли смысл повторять запрос.
// Сетевые ошибки и ответы 5xx считаются временными.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return err != nil && !errors.Is(err, ErrUserNotFound)
}

// Client клиент панели с bearer-авторизацией.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт новый клиент панели.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (*User, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var body bytes.Buffer
		_, _ = body.ReadFrom(resp.Body)
		return nil, &APIError{Status: resp.StatusCode, Body: body.String()}
	}

	var result userResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result.Response, nil
}

// CreateUser создаёт учётную запись на панели.
func (c *Client) CreateUser(ctx context.Context, reqParams UserRequest) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/users", reqParams)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// UpdateUser обновляет учётную запись панели по её UUID.
func (c *Client) UpdateUser(ctx context.Context, uuid string, reqParams UserRequest) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodPatch, "/api/users/"+uuid, reqParams)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// GetUserByTelegramID возвращает учётную запись панели по идентификатору
// пользователя мессенджера. Возвращает ErrUserNotFound, если записи нет.
func (c *Client) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet,
		fmt.Sprintf("/api/users/by-telegram-id/%d", telegramID), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}
