package meta

import (
	"fmt"
	"sync"
)

// State of a connection attempt.
type State string

const (
	StateUnauthenticated    State = "unauthenticated"
	StateAwaitingCredential State = "awaiting_credential"
	StateCredentialObtained State = "credential_obtained"
	StateBusinessSelected   State = "business_selected"
	StateAccountSelected    State = "account_selected"
	StateLinked             State = "linked"
)

// Session tracks one connection attempt through the
// Unauthenticated -> AwaitingCredential -> CredentialObtained ->
// BusinessSelected -> AccountSelected -> Linked progression. The access
// credential lives only here, in memory, for the duration of the
// process; it is never persisted.
type Session struct {
	mu          sync.Mutex
	state       State
	accessToken string
	businesses  []Business
	accounts    []AdAccount
	businessID  string
	accountID   string
}

// NewSession starts unauthenticated.
func NewSession() *Session {
	return &Session{state: StateUnauthenticated}
}

// State returns the current attempt state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin starts a fresh attempt, discarding any previous progress but
// keeping an already-obtained credential usable until replaced.
func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAwaitingCredential
	s.businesses = nil
	s.accounts = nil
	s.businessID = ""
	s.accountID = ""
}

// Fail aborts the attempt and returns to the unauthenticated state.
func (s *Session) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateUnauthenticated
	s.accessToken = ""
}

// SetCredential records the granted access token.
func (s *Session) SetCredential(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingCredential {
		return fmt.Errorf("cannot accept credential in state %q", s.state)
	}
	if token == "" {
		return ErrLoginDeclined
	}
	s.accessToken = token
	s.state = StateCredentialObtained
	return nil
}

// Token returns the in-memory credential, or "" when none is held.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// SetBusinesses stores the fetched business list for selection.
func (s *Session) SetBusinesses(businesses []Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses = businesses
}

// SelectBusiness picks one business from the fetched list.
func (s *Session) SelectBusiness(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCredentialObtained && s.state != StateBusinessSelected {
		return fmt.Errorf("cannot select a business in state %q", s.state)
	}
	for _, b := range s.businesses {
		if b.ID == id {
			s.businessID = id
			s.state = StateBusinessSelected
			return nil
		}
	}
	return fmt.Errorf("business %q is not in the fetched list", id)
}

// SetAdAccounts stores the fetched ad account list for selection.
func (s *Session) SetAdAccounts(accounts []AdAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = accounts
}

// SelectAccount picks one ad account of the selected business.
func (s *Session) SelectAccount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateBusinessSelected && s.state != StateAccountSelected {
		return fmt.Errorf("cannot select an ad account in state %q", s.state)
	}
	for _, a := range s.accounts {
		if a.ID == id {
			s.accountID = id
			s.state = StateAccountSelected
			return nil
		}
	}
	return fmt.Errorf("ad account %q is not in the fetched list", id)
}

// Link completes the attempt and returns the chosen identifiers. The
// attempt is discarded; the credential is retained for data pulls
// within the session.
func (s *Session) Link() (businessID, accountID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAccountSelected {
		return "", "", fmt.Errorf("cannot link in state %q", s.state)
	}
	businessID, accountID = s.businessID, s.accountID
	s.state = StateLinked
	s.businesses = nil
	s.accounts = nil
	return businessID, accountID, nil
}
