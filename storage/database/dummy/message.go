package dummydb

import (
	"context"
	"sort"

	"github.com/tuyishimwe/umurinzi/core/alert"
)

type messageRepository struct {
	db *messageTable
}

var _ alert.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) *messageRepository {
	return &messageRepository{db: db.message}
}

func (repo *messageRepository) CreateMessage(_ context.Context, m alert.Message) (alert.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[m.ID] = &m
	return m, nil
}

func (repo *messageRepository) GetMessage(_ context.Context, id string) (alert.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.table[id]; ok {
		return *m, nil
	}
	return alert.Message{}, alert.ErrMessageNotFound
}

func (repo *messageRepository) UpdateMessage(_ context.Context, m alert.Message) (alert.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[m.ID]; !ok {
		return alert.Message{}, alert.ErrMessageNotFound
	}
	repo.db.table[m.ID] = &m
	return m, nil
}

func (repo *messageRepository) QueryRetryable(_ context.Context, maxRetries, limit int) ([]alert.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var msgs []alert.Message
	for _, m := range repo.db.table {
		if m.Retryable(maxRetries) {
			msgs = append(msgs, *m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}
