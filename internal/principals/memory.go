package principals

import (
	"context"
	"strings"
	"sync"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/permission"
)

// Memory is a mutex-guarded principal directory keyed by id and by
// lower-cased email.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]estateAuth.Principal
	idByKey map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[string]estateAuth.Principal),
		idByKey: make(map[string]string),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Put inserts or replaces p.
func (m *Memory) Put(p estateAuth.Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.byID[p.ID]; ok {
		delete(m.idByKey, emailKey(old.Email))
	}
	m.byID[p.ID] = p
	m.idByKey[emailKey(p.Email)] = p.ID
}

func (m *Memory) GetPrincipalByEmail(_ context.Context, email string) (estateAuth.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.idByKey[emailKey(email)]
	if !ok {
		return estateAuth.Principal{}, estateAuth.ErrPrincipalNotFound
	}
	return m.byID[id], nil
}

func (m *Memory) GetPrincipalByID(_ context.Context, id string) (estateAuth.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return estateAuth.Principal{}, estateAuth.ErrPrincipalNotFound
	}
	return p, nil
}

func (m *Memory) UpdateCredentialHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return estateAuth.ErrPrincipalNotFound
	}
	p.CredentialHash = hash
	m.byID[id] = p
	return nil
}

// SetActive flips the active flag of id. Unknown ids are ignored.
func (m *Memory) SetActive(id string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		p.Active = active
		m.byID[id] = p
	}
}

// SetRole replaces the role of id. Unknown ids are ignored.
func (m *Memory) SetRole(id string, role permission.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		p.Role = role
		m.byID[id] = p
	}
}

var _ estateAuth.PrincipalStore = (*Memory)(nil)
