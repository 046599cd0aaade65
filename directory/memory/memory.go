// Package memory is an in-process AccountDirectory for tests and local runs.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/resumeauth"
)

// Directory keeps profiles in maps guarded by a mutex. Returned profiles are
// copies.
type Directory struct {
	mu      sync.Mutex
	byID    map[string]resumeauth.Profile
	byEmail map[string]string
	failOn  map[string]error
	lateErr map[string]error
	calls   int
	now     func() time.Time
}

var _ resumeauth.AccountDirectory = (*Directory)(nil)

func New() *Directory {
	return &Directory{
		byID:    make(map[string]resumeauth.Profile),
		byEmail: make(map[string]string),
		failOn:  make(map[string]error),
		lateErr: make(map[string]error),
		now:     time.Now,
	}
}

// Operation names accepted by Fail.
const (
	OpCreate      = "Create"
	OpFindByID    = "FindByID"
	OpFindByEmail = "FindByEmail"
	OpUpdate      = "Update"
	OpDelete      = "Delete"
)

// Fail makes op return err until Fail(op, nil) is called.
func (d *Directory) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failOn, op)
		return
	}
	d.failOn[op] = err
}

// FailAfterWrite makes Create store the profile and then return err, the way a
// database reply can be lost after the row committed.
func (d *Directory) FailAfterWrite(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.lateErr, OpCreate)
		return
	}
	d.lateErr[OpCreate] = err
}

// Calls returns the number of calls across all operations.
func (d *Directory) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Len returns the number of stored profiles.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byID)
}

func (d *Directory) begin(ctx context.Context, op string) error {
	d.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.failOn[op]
}

func (d *Directory) Create(ctx context.Context, p *resumeauth.Profile) (*resumeauth.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx, OpCreate); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(p.Email))
	if _, ok := d.byID[p.ID]; ok {
		return nil, resumeauth.ErrUserExists
	}
	if _, ok := d.byEmail[email]; ok {
		return nil, resumeauth.ErrUserExists
	}

	now := d.now().UTC()
	stored := *p
	stored.Email = email
	if stored.Role == "" {
		stored.Role = resumeauth.RoleUser
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now
	d.byID[stored.ID] = stored
	d.byEmail[email] = stored.ID
	if err := d.lateErr[OpCreate]; err != nil {
		return nil, err
	}

	out := stored
	return &out, nil
}

func (d *Directory) FindByID(ctx context.Context, id string) (*resumeauth.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx, OpFindByID); err != nil {
		return nil, err
	}
	p, ok := d.byID[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (*resumeauth.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx, OpFindByEmail); err != nil {
		return nil, err
	}
	id, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, nil
	}
	p := d.byID[id]
	return &p, nil
}

func (d *Directory) Update(ctx context.Context, id string, upd resumeauth.ProfileUpdate) (*resumeauth.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx, OpUpdate); err != nil {
		return nil, err
	}
	p, ok := d.byID[id]
	if !ok {
		return nil, resumeauth.ErrProfileNotFound
	}
	if upd.FirstName != nil {
		p.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		p.LastName = *upd.LastName
	}
	if upd.Role != nil {
		p.Role = *upd.Role
	}
	p.UpdatedAt = d.now().UTC()
	d.byID[id] = p
	return &p, nil
}

func (d *Directory) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin(ctx, OpDelete); err != nil {
		return err
	}
	p, ok := d.byID[id]
	if !ok {
		return nil
	}
	delete(d.byEmail, p.Email)
	delete(d.byID, id)
	return nil
}
