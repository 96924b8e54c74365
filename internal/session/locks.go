package session

import "sync"

// chatLocks hands out one mutex per chat so that exchanges for the same chat
// serialize end to end while different chats proceed independently. Locks
// are never reclaimed; the map grows with the number of distinct chats, which
// stays small for a single bot.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *chatLocks) get(chatID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[chatID] = lock
	}
	return lock
}
