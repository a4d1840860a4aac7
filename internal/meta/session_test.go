package meta

import "testing"

func TestSessionHappyPath(t *testing.T) {
	s := NewSession()
	if s.State() != StateUnauthenticated {
		t.Fatalf("fresh session state = %q", s.State())
	}

	s.Begin()
	if s.State() != StateAwaitingCredential {
		t.Fatalf("after Begin state = %q", s.State())
	}

	if err := s.SetCredential("tok"); err != nil {
		t.Fatalf("set credential: %v", err)
	}

	s.SetBusinesses([]Business{{ID: "bm1", Name: "Agency"}})
	if err := s.SelectBusiness("bm1"); err != nil {
		t.Fatalf("select business: %v", err)
	}

	s.SetAdAccounts([]AdAccount{{ID: "act_1", AccountID: "1"}})
	if err := s.SelectAccount("act_1"); err != nil {
		t.Fatalf("select account: %v", err)
	}

	bm, act, err := s.Link()
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if bm != "bm1" || act != "act_1" {
		t.Errorf("link returned %q/%q", bm, act)
	}
	if s.State() != StateLinked {
		t.Errorf("after Link state = %q", s.State())
	}
	if s.Token() != "tok" {
		t.Error("credential must survive linking for data pulls")
	}
}

func TestSessionRejectsOutOfOrderTransitions(t *testing.T) {
	s := NewSession()

	if err := s.SetCredential("tok"); err == nil {
		t.Error("credential before Begin must be rejected")
	}
	if err := s.SelectBusiness("bm1"); err == nil {
		t.Error("business selection before credential must be rejected")
	}
	if _, _, err := s.Link(); err == nil {
		t.Error("link before account selection must be rejected")
	}
}

func TestSessionDeclineClearsCredential(t *testing.T) {
	s := NewSession()
	s.Begin()
	if err := s.SetCredential(""); err != ErrLoginDeclined {
		t.Fatalf("empty credential should be a decline, got %v", err)
	}

	s.Fail()
	if s.State() != StateUnauthenticated {
		t.Errorf("after Fail state = %q", s.State())
	}
	if s.Token() != "" {
		t.Error("Fail must drop the credential")
	}
}

func TestSessionSelectionMustComeFromFetchedList(t *testing.T) {
	s := NewSession()
	s.Begin()
	s.SetCredential("tok")
	s.SetBusinesses([]Business{{ID: "bm1"}})

	if err := s.SelectBusiness("bm2"); err == nil {
		t.Error("selecting a business outside the fetched list must fail")
	}
}
