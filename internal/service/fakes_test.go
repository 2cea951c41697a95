package service

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"taskhub/internal/model"
	"taskhub/internal/repository"
)

// 共享的内存版 store 实现，行为对齐 pgx 仓库（缺失行返回 pgx.ErrNoRows）。

// fakeTx 只追踪提交/回滚；嵌入的 pgx.Tx 保持 nil，
// 任何透传调用都会 panic 以暴露误用
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	txs      []*fakeTx
	beginErr error
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	tx := &fakeTx{}
	d.txs = append(d.txs, tx)
	return tx, nil
}

// lastTx 最近一次 Begin 返回的事务
func (d *fakeDB) lastTx() *fakeTx {
	if len(d.txs) == 0 {
		return nil
	}
	return d.txs[len(d.txs)-1]
}

type fakeTaskStore struct {
	nextID int64
	tasks  map[int64]*model.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[int64]*model.Task)}
}

func (f *fakeTaskStore) Insert(ctx context.Context, tx pgx.Tx, t *model.Task) error {
	f.nextID++
	t.ID = f.nextID
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTaskStore) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTaskStore) List(ctx context.Context, filter repository.TaskFilter) ([]model.Task, int, error) {
	var matched []model.Task
	var ids []int64
	for id := range f.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		t := f.tasks[id]
		if filter.ProjectID != nil && t.ProjectID != *filter.ProjectID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.AssigneeID != nil {
			if t.Assignee == nil || t.Assignee.ID != *filter.AssigneeID {
				continue
			}
		}
		matched = append(matched, *t)
	}

	total := len(matched)
	offset := (filter.Page - 1) * filter.Limit
	if offset >= total {
		return []model.Task{}, total, nil
	}
	end := offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (f *fakeTaskStore) Update(ctx context.Context, tx pgx.Tx, t *model.Task) error {
	if _, ok := f.tasks[t.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTaskStore) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status string) (time.Time, error) {
	t, ok := f.tasks[id]
	if !ok {
		return time.Time{}, pgx.ErrNoRows
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return t.UpdatedAt, nil
}

type fakeProjectStore struct {
	nextID   int64
	projects map[int64]*model.Project
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{projects: make(map[int64]*model.Project)}
}

func (f *fakeProjectStore) Insert(ctx context.Context, tx pgx.Tx, p *model.Project) error {
	f.nextID++
	p.ID = f.nextID
	cp := *p
	f.projects[p.ID] = &cp
	return nil
}

func (f *fakeProjectStore) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjectStore) Exists(ctx context.Context, id int64) (bool, error) {
	_, ok := f.projects[id]
	return ok, nil
}

func (f *fakeProjectStore) List(ctx context.Context, filter repository.ProjectFilter) ([]model.Project, int, error) {
	var matched []model.Project
	var ids []int64
	for id := range f.projects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p := f.projects[id]
		if filter.OwnerID != nil && p.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		matched = append(matched, *p)
	}

	total := len(matched)
	offset := (filter.Page - 1) * filter.Limit
	if offset >= total {
		return []model.Project{}, total, nil
	}
	end := offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (f *fakeProjectStore) Update(ctx context.Context, tx pgx.Tx, p *model.Project) error {
	if _, ok := f.projects[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *p
	f.projects[p.ID] = &cp
	return nil
}

func (f *fakeProjectStore) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status string) (time.Time, error) {
	p, ok := f.projects[id]
	if !ok {
		return time.Time{}, pgx.ErrNoRows
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return p.UpdatedAt, nil
}

type fakeUserStore struct {
	nextID int64
	users  map[int64]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]*model.User)}
}

func (f *fakeUserStore) Insert(ctx context.Context, u *model.User) error {
	f.nextID++
	u.ID = f.nextID
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) Exists(ctx context.Context, id int64) (bool, error) {
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeUserStore) List(ctx context.Context, page, limit int) ([]model.User, int, error) {
	var ids []int64
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var all []model.User
	for _, id := range ids {
		all = append(all, *f.users[id])
	}

	total := len(all)
	offset := (page - 1) * limit
	if offset >= total {
		return []model.User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

type fakeSubStore struct {
	nextID int64
	subs   map[int64]*model.Subscription
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{subs: make(map[int64]*model.Subscription)}
}

func (f *fakeSubStore) Insert(ctx context.Context, s *model.Subscription) error {
	f.nextID++
	s.ID = f.nextID
	cp := *s
	f.subs[s.ID] = &cp
	return nil
}

func (f *fakeSubStore) GetByID(ctx context.Context, id int64) (*model.Subscription, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubStore) List(ctx context.Context) ([]model.Subscription, error) {
	var ids []int64
	for id := range f.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var all []model.Subscription
	for _, id := range ids {
		all = append(all, *f.subs[id])
	}
	return all, nil
}

func (f *fakeSubStore) Delete(ctx context.Context, id int64) (bool, error) {
	if _, ok := f.subs[id]; !ok {
		return false, nil
	}
	delete(f.subs, id)
	return true, nil
}

type emittedEvent struct {
	AggregateType string
	AggregateID   *int64
	RoutingKey    string
	Payload       interface{}
}

type fakeEmitter struct {
	events []emittedEvent
	err    error
}

func (f *fakeEmitter) EmitInTx(ctx context.Context, tx pgx.Tx, aggregateType string, aggregateID *int64, routingKey string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, emittedEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payload,
	})
	return nil
}

func (f *fakeEmitter) byKey(routingKey string) []emittedEvent {
	var out []emittedEvent
	for _, e := range f.events {
		if e.RoutingKey == routingKey {
			out = append(out, e)
		}
	}
	return out
}
