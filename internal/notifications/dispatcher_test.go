package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore implements Store for dispatcher tests.
type mockStore struct {
	inboxErr     error
	prefs        Preferences
	prefsErr     error
	tokens       []string
	tokensErr    error
	template     EmailTemplate
	templateErr  error
	insertedRows []Notification
	outcomes     []string // "channel:status"
}

func (m *mockStore) InsertInbox(_ context.Context, n Notification) (int64, error) {
	if m.inboxErr != nil {
		return 0, m.inboxErr
	}
	m.insertedRows = append(m.insertedRows, n)
	return int64(len(m.insertedRows)), nil
}

func (m *mockStore) GetPreferences(_ context.Context, userID string) (Preferences, error) {
	if m.prefsErr != nil {
		return Preferences{}, m.prefsErr
	}
	return m.prefs, nil
}

func (m *mockStore) GetTokens(_ context.Context, _ string) ([]string, error) {
	return m.tokens, m.tokensErr
}

func (m *mockStore) LogOutcome(_ context.Context, _ string, channel string, status string, _ string) error {
	m.outcomes = append(m.outcomes, channel+":"+status)
	return nil
}

func (m *mockStore) GetEmailTemplate(_ context.Context, name string) (EmailTemplate, error) {
	if m.templateErr != nil {
		return EmailTemplate{}, m.templateErr
	}
	return m.template, nil
}

// fakePush records sends and can be told to fail.
type fakePush struct {
	calls  int
	err    error
	result PushResult
}

func (f *fakePush) Send(_ context.Context, tokens []string, _, _ string, _ map[string]string) (PushResult, error) {
	f.calls++
	if f.err != nil {
		return PushResult{}, f.err
	}
	return f.result, nil
}

// fakeEmail records the last message sent.
type fakeEmail struct {
	calls   int
	err     error
	to      string
	subject string
	body    string
}

func (f *fakeEmail) Send(_ context.Context, to, subject, body string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.to, f.subject, f.body = to, subject, body
	return nil
}

func allEnabledPrefs(userID string) Preferences {
	return Preferences{
		UserID:       userID,
		Email:        "user@example.com",
		OrderUpdates: true,
		Promotions:   true,
		PushEnabled:  true,
		EmailEnabled: true,
	}
}

func orderNotification() Notification {
	return Notification{
		UserID: "user-1",
		Title:  "Order Confirmed",
		Body:   "Your order is confirmed.",
		Type:   TypeOrderUpdate,
		Data:   map[string]string{"order_id": "ord-1", "total": "88.00"},
		Email:  true,
		Push:   true,
	}
}

func TestDispatch_AllChannels(t *testing.T) {
	store := &mockStore{
		prefs:    allEnabledPrefs("user-1"),
		tokens:   []string{"tok-1", "tok-2"},
		template: EmailTemplate{Name: TypeOrderUpdate, Subject: "Order {{order_id}}", Body: "Total {{total}}"},
	}
	push := &fakePush{result: PushResult{SuccessCount: 2}}
	email := &fakeEmail{}
	d := NewDispatcher(store, push, email)

	result, err := d.Dispatch(context.Background(), orderNotification())

	require.NoError(t, err)
	assert.Len(t, store.insertedRows, 1)
	assert.True(t, result.PushRan)
	assert.Equal(t, 2, result.Push.SuccessCount)
	assert.True(t, result.EmailOK)
	assert.Equal(t, "user@example.com", email.to)
	assert.Equal(t, "Order ord-1", email.subject)
	assert.Equal(t, "Total 88.00", email.body)
}

func TestDispatch_InboxFailureIsFatal(t *testing.T) {
	store := &mockStore{inboxErr: errors.New("db down")}
	d := NewDispatcher(store, &fakePush{}, &fakeEmail{})

	_, err := d.Dispatch(context.Background(), orderNotification())

	require.Error(t, err)
}

func TestDispatch_PushFailureDoesNotFailDispatch(t *testing.T) {
	store := &mockStore{
		prefs:    allEnabledPrefs("user-1"),
		tokens:   []string{"tok-1"},
		template: EmailTemplate{Subject: "s", Body: "b"},
	}
	push := &fakePush{err: errors.New("fcm unreachable")}
	email := &fakeEmail{}
	d := NewDispatcher(store, push, email)

	result, err := d.Dispatch(context.Background(), orderNotification())

	require.NoError(t, err)
	assert.False(t, result.PushRan)
	assert.True(t, result.EmailOK)
	// Initial attempt plus two retries.
	assert.Equal(t, 3, push.calls)
	assert.Contains(t, store.outcomes, "push:failed")
}

func TestDispatch_EmailFailureDoesNotFailDispatch(t *testing.T) {
	store := &mockStore{
		prefs:    allEnabledPrefs("user-1"),
		tokens:   []string{"tok-1"},
		template: EmailTemplate{Subject: "s", Body: "b"},
	}
	email := &fakeEmail{err: errors.New("smtp timeout")}
	d := NewDispatcher(store, &fakePush{result: PushResult{SuccessCount: 1}}, email)

	result, err := d.Dispatch(context.Background(), orderNotification())

	require.NoError(t, err)
	assert.True(t, result.PushRan)
	assert.False(t, result.EmailOK)
	assert.Contains(t, store.outcomes, "email:failed")
}

func TestDispatch_NoTokensSkipsPush(t *testing.T) {
	store := &mockStore{
		prefs:    allEnabledPrefs("user-1"),
		template: EmailTemplate{Subject: "s", Body: "b"},
	}
	push := &fakePush{}
	d := NewDispatcher(store, push, &fakeEmail{})

	result, err := d.Dispatch(context.Background(), orderNotification())

	require.NoError(t, err)
	assert.False(t, result.PushRan)
	assert.Zero(t, push.calls)
	assert.Contains(t, store.outcomes, "push:skipped")
}

func TestDispatch_TypeDisabledByPreferences(t *testing.T) {
	prefs := allEnabledPrefs("user-1")
	prefs.OrderUpdates = false
	store := &mockStore{prefs: prefs, tokens: []string{"tok-1"}}
	push := &fakePush{}
	email := &fakeEmail{}
	d := NewDispatcher(store, push, email)

	result, err := d.Dispatch(context.Background(), orderNotification())

	require.NoError(t, err)
	// The inbox row still lands; only the outbound channels are suppressed.
	assert.Len(t, store.insertedRows, 1)
	assert.False(t, result.PushRan)
	assert.False(t, result.EmailOK)
	assert.Zero(t, push.calls)
	assert.Zero(t, email.calls)
}

func TestDispatch_NoEmailAddressSkipsEmail(t *testing.T) {
	prefs := allEnabledPrefs("user-1")
	prefs.Email = ""
	store := &mockStore{prefs: prefs, tokens: []string{"tok-1"}}
	email := &fakeEmail{}
	d := NewDispatcher(store, &fakePush{result: PushResult{SuccessCount: 1}}, email)

	result, err := d.Dispatch(context.Background(), orderNotification())

	require.NoError(t, err)
	assert.False(t, result.EmailOK)
	assert.Zero(t, email.calls)
	assert.Contains(t, store.outcomes, "email:skipped")
}

func TestDispatch_MissingTemplateSkipsEmail(t *testing.T) {
	store := &mockStore{
		prefs:       allEnabledPrefs("user-1"),
		tokens:      []string{"tok-1"},
		templateErr: ErrTemplateNotFound,
	}
	email := &fakeEmail{}
	d := NewDispatcher(store, &fakePush{result: PushResult{SuccessCount: 1}}, email)

	result, err := d.Dispatch(context.Background(), orderNotification())

	require.NoError(t, err)
	assert.False(t, result.EmailOK)
	assert.Zero(t, email.calls)
}

func TestDispatch_PreferencesErrorFallsBackToDefaults(t *testing.T) {
	store := &mockStore{
		prefsErr: errors.New("db glitch"),
		tokens:   []string{"tok-1"},
	}
	push := &fakePush{result: PushResult{SuccessCount: 1}}
	d := NewDispatcher(store, push, &fakeEmail{})

	result, err := d.Dispatch(context.Background(), orderNotification())

	require.NoError(t, err)
	// Defaults enable push; email skips for lack of an address.
	assert.True(t, result.PushRan)
	assert.False(t, result.EmailOK)
}
