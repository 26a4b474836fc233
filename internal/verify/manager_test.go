package verify

import (
	"testing"
	"time"

	"github.com/codewithmutahir/timeclock/internal/config"
)

func testManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()

	m := NewManager(testVerifyConfig(), &config.GuidanceConfig{}, &fakeDetector{})
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestManager_OneSessionPerEmployee(t *testing.T) {
	m, _ := testManager(t)

	first := m.CreateSession("emp-42", matchingDescriptor())
	defer first.Close()
	second := m.CreateSession("emp-42", matchingDescriptor())
	defer second.Close()

	if m.GetSession(first.ID) != nil {
		t.Error("expected first session removed after replacement")
	}
	select {
	case <-first.Done():
	default:
		t.Error("expected first session closed after replacement")
	}
	if m.GetSession(second.ID) != second {
		t.Error("expected second session registered")
	}
}

func TestManager_CloseSession(t *testing.T) {
	m, _ := testManager(t)

	sess := m.CreateSession("emp-42", matchingDescriptor())
	if !m.CloseSession(sess.ID) {
		t.Fatal("expected close to succeed")
	}
	select {
	case <-sess.Done():
	default:
		t.Error("expected session closed")
	}
	if m.GetSession(sess.ID) != nil {
		t.Error("expected session removed")
	}
	if m.CloseSession(sess.ID) {
		t.Error("expected second close to report missing session")
	}
	if m.CloseSession("no-such-id") {
		t.Error("expected close of unknown session to fail")
	}
}

func TestManager_TokenIsSingleUse(t *testing.T) {
	m, _ := testManager(t)

	token := m.mintToken("emp-42")
	if token == "" {
		t.Fatal("expected a token")
	}
	if !m.ConsumeToken(token, "emp-42") {
		t.Fatal("expected first redemption to succeed")
	}
	if m.ConsumeToken(token, "emp-42") {
		t.Error("expected second redemption to fail")
	}
}

func TestManager_TokenEmployeeMismatch(t *testing.T) {
	m, _ := testManager(t)

	token := m.mintToken("emp-42")
	if m.ConsumeToken(token, "emp-99") {
		t.Fatal("expected redemption for another employee to fail")
	}
	// A failed redemption by the wrong employee must not burn the token.
	if !m.ConsumeToken(token, "emp-42") {
		t.Error("expected redemption by the right employee to still succeed")
	}
}

func TestManager_TokenExpiry(t *testing.T) {
	m, now := testManager(t)

	token := m.mintToken("emp-42")
	*now = now.Add(61 * time.Second)
	if m.ConsumeToken(token, "emp-42") {
		t.Error("expected expired token to fail")
	}
}

func TestManager_ConsumeUnknownToken(t *testing.T) {
	m, _ := testManager(t)

	if m.ConsumeToken("", "emp-42") {
		t.Error("expected empty token to fail")
	}
	if m.ConsumeToken("bogus", "emp-42") {
		t.Error("expected unknown token to fail")
	}
}

func TestManager_ReapExpiredSessionsAndTokens(t *testing.T) {
	m, now := testManager(t)

	sess := m.CreateSession("emp-42", matchingDescriptor())
	sess.CreatedAt = *now
	token := m.mintToken("emp-42")

	*now = now.Add(3 * time.Minute) // past both SessionTTL and TokenTTL
	m.Reap()

	if m.GetSession(sess.ID) != nil {
		t.Error("expected expired session reaped")
	}
	select {
	case <-sess.Done():
	default:
		t.Error("expected reaped session closed")
	}
	if m.ConsumeToken(token, "emp-42") {
		t.Error("expected expired token dropped")
	}
}
