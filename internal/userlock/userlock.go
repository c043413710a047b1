// Package userlock реализует мьютекс с ключом по идентификатору пользователя.
// Мутации одного пользователя (допуск платежа → начисление → запуск синхронизации)
// сериализуются, разные пользователи обрабатываются параллельно.
package userlock

import "sync"

// Keyed набор мьютексов, создаваемых по требованию на каждый ключ.
type Keyed struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New создает новый Keyed.
func New() *Keyed {
	return &Keyed{locks: make(map[int64]*entry)}
}

// Lock захватывает мьютекс для ключа key.
func (k *Keyed) Lock(key int64) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock освобождает мьютекс для ключа key.
// Запись удаляется из карты, когда на неё не осталось ссылок.
func (k *Keyed) Unlock(key int64) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
	}
	k.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}
