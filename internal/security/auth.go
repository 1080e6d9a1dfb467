package security

import "sync"

// Authorizer knows the privileged identity and the ids exempt from
// moderation. It can be updated on config reload.
type Authorizer struct {
	mu       sync.RWMutex
	masterID string
	exempt   map[string]bool
}

// NewAuthorizer creates an authorizer. The master id is always exempt.
func NewAuthorizer(masterID string, allowedIDs []string) *Authorizer {
	a := &Authorizer{}
	a.Update(masterID, allowedIDs)
	return a
}

// Update replaces the master id and the exemption list.
func (a *Authorizer) Update(masterID string, allowedIDs []string) {
	m := make(map[string]bool, len(allowedIDs)+1)
	for _, id := range allowedIDs {
		if id != "" {
			m[id] = true
		}
	}
	if masterID != "" {
		m[masterID] = true
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.masterID = masterID
	a.exempt = m
}

// MasterID returns the configured privileged identity.
func (a *Authorizer) MasterID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.masterID
}

// IsMaster reports whether userID is the privileged identity.
func (a *Authorizer) IsMaster(userID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.masterID != "" && userID == a.masterID
}

// IsExempt reports whether userID bypasses the content rule. Unlike an
// allow-list, an empty list exempts nobody but the master.
func (a *Authorizer) IsExempt(userID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.exempt[userID]
}
