package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryGateway is an in-process Gateway for tests and local development. It
// records how many calls each operation received and can be told to fail.
type MemoryGateway struct {
	mu sync.Mutex

	users       map[string]*memoryUser // by id
	byEmail     map[string]string
	sessions    map[string]memorySession // access token
	refresh     map[string]string        // refresh token -> user id
	emailTokens map[string]memoryEmailToken
	resets      []string
	resetTokens map[string]string
	failures    map[string]error
	calls       map[string]int

	// SessionTTL is the lifetime of provider access tokens. Defaults to one hour.
	SessionTTL time.Duration
	// MinPasswordLength mirrors the provider password policy. Defaults to 6.
	MinPasswordLength int
	// AutoConfirm marks new accounts as confirmed.
	AutoConfirm bool

	now func() time.Time
}

type memoryUser struct {
	identity Identity
	password string
}

type memorySession struct {
	userID    string
	expiresAt time.Time
}

type memoryEmailToken struct {
	userID string
	typ    string
}

var _ Gateway = (*MemoryGateway)(nil)

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		users:             make(map[string]*memoryUser),
		byEmail:           make(map[string]string),
		sessions:          make(map[string]memorySession),
		refresh:           make(map[string]string),
		emailTokens:       make(map[string]memoryEmailToken),
		resetTokens:       make(map[string]string),
		failures:          make(map[string]error),
		calls:             make(map[string]int),
		SessionTTL:        time.Hour,
		MinPasswordLength: 6,
		now:               time.Now,
	}
}

// Operation names accepted by Fail and CallCount.
const (
	OpCreateAccount          = "CreateAccount"
	OpVerifyCredentials      = "VerifyCredentials"
	OpRefreshExternalSession = "RefreshExternalSession"
	OpSignOutExternal        = "SignOutExternal"
	OpVerifyEmailToken       = "VerifyEmailToken"
	OpSendPasswordResetEmail = "SendPasswordResetEmail"
	OpSetNewPassword         = "SetNewPassword"
	OpDeleteAccount          = "DeleteAccount"
)

// Fail makes every call to op return err until Fail(op, nil) is called.
func (m *MemoryGateway) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// CallCount returns how many times op was called.
func (m *MemoryGateway) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (m *MemoryGateway) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Users returns the number of identity records.
func (m *MemoryGateway) Users() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// Lookup returns the identity for email.
func (m *MemoryGateway) Lookup(email string) (*Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, false
	}
	ident := m.users[id].identity
	return &ident, true
}

// ConfirmEmail marks the account as confirmed.
func (m *MemoryGateway) ConfirmEmail(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byEmail[normalizeEmail(email)]; ok {
		now := m.now()
		m.users[id].identity.EmailConfirmedAt = &now
	}
}

// IssueEmailToken creates a token hash as if the provider had emailed a link.
func (m *MemoryGateway) IssueEmailToken(email, verificationType string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return ""
	}
	token := uuid.NewString()
	m.emailTokens[token] = memoryEmailToken{userID: id, typ: verificationType}
	return token
}

// ResetEmails returns the addresses a reset email was sent to.
func (m *MemoryGateway) ResetEmails() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.resets...)
}

// ResetToken returns the recovery token hash of the last reset email sent to email.
func (m *MemoryGateway) ResetToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetTokens[normalizeEmail(email)]
}

// ExpireSessions moves the clock used for provider session expiry forward by d.
func (m *MemoryGateway) ExpireSessions(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := m.now
	m.now = func() time.Time { return base().Add(d) }
}

func (m *MemoryGateway) begin(ctx context.Context, op string) error {
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.failures[op]
}

func (m *MemoryGateway) CreateAccount(ctx context.Context, email, password string, _ map[string]string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpCreateAccount); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	if _, exists := m.byEmail[email]; exists {
		return nil, ErrDuplicate
	}
	if len(password) < m.MinPasswordLength {
		return nil, ErrWeakPassword
	}

	u := &memoryUser{identity: Identity{ID: uuid.NewString(), Email: email}, password: password}
	if m.AutoConfirm {
		now := m.now()
		u.identity.EmailConfirmedAt = &now
	}
	m.users[u.identity.ID] = u
	m.byEmail[email] = u.identity.ID

	ident := u.identity
	return &ident, nil
}

func (m *MemoryGateway) VerifyCredentials(ctx context.Context, email, password string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpVerifyCredentials); err != nil {
		return nil, err
	}

	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok || m.users[id].password != password {
		return nil, ErrInvalidCredentials
	}
	if !m.users[id].identity.Confirmed() {
		return nil, ErrEmailNotConfirmed
	}
	return m.newSession(id), nil
}

func (m *MemoryGateway) RefreshExternalSession(ctx context.Context, refreshToken string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpRefreshExternalSession); err != nil {
		return nil, err
	}

	id, ok := m.refresh[refreshToken]
	if !ok {
		return nil, ErrInvalidToken
	}
	delete(m.refresh, refreshToken)
	if _, exists := m.users[id]; !exists {
		return nil, ErrInvalidToken
	}
	return m.newSession(id), nil
}

func (m *MemoryGateway) SignOutExternal(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpSignOutExternal); err != nil {
		return err
	}

	s, ok := m.sessions[accessToken]
	if !ok {
		return nil
	}
	for token, sess := range m.sessions {
		if sess.userID == s.userID {
			delete(m.sessions, token)
		}
	}
	for token, uid := range m.refresh {
		if uid == s.userID {
			delete(m.refresh, token)
		}
	}
	return nil
}

func (m *MemoryGateway) VerifyEmailToken(ctx context.Context, tokenHash, verificationType string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpVerifyEmailToken); err != nil {
		return nil, err
	}

	tok, ok := m.emailTokens[tokenHash]
	if !ok || tok.typ != verificationType {
		return nil, ErrInvalidToken
	}
	delete(m.emailTokens, tokenHash)

	u, ok := m.users[tok.userID]
	if !ok {
		return nil, ErrInvalidToken
	}
	if !u.identity.Confirmed() {
		now := m.now()
		u.identity.EmailConfirmedAt = &now
	}
	return m.newSession(tok.userID), nil
}

func (m *MemoryGateway) SendPasswordResetEmail(ctx context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpSendPasswordResetEmail); err != nil {
		return err
	}

	email = normalizeEmail(email)
	id, ok := m.byEmail[email]
	if !ok {
		// The provider does not reveal whether the account exists.
		return nil
	}
	token := uuid.NewString()
	m.resets = append(m.resets, email)
	m.resetTokens[email] = token
	m.emailTokens[token] = memoryEmailToken{userID: id, typ: VerifyRecovery}
	return nil
}

func (m *MemoryGateway) SetNewPassword(ctx context.Context, accessToken, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpSetNewPassword); err != nil {
		return err
	}

	s, ok := m.sessions[accessToken]
	if !ok || !m.now().Before(s.expiresAt) {
		return ErrInvalidToken
	}
	if len(newPassword) < m.MinPasswordLength {
		return ErrWeakPassword
	}
	u, ok := m.users[s.userID]
	if !ok {
		return ErrNotFound
	}
	u.password = newPassword
	return nil
}

func (m *MemoryGateway) DeleteAccount(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpDeleteAccount); err != nil {
		return err
	}

	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	delete(m.byEmail, u.identity.Email)
	delete(m.users, userID)
	return nil
}

func (m *MemoryGateway) newSession(userID string) *Session {
	access := uuid.NewString()
	refresh := uuid.NewString()
	expiresAt := m.now().Add(m.SessionTTL)

	m.sessions[access] = memorySession{userID: userID, expiresAt: expiresAt}
	m.refresh[refresh] = userID

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		Identity:     m.users[userID].identity,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
