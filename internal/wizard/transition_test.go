package wizard

import (
	"testing"

	"github.com/stretchr/testify/require"

	"venuepass/internal/domain"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"5551234567", "5551234567", true},
		{"(555) 123-4567", "5551234567", true},
		{"(555) 123-4567x", "5551234567", true},
		{"+1 555 123 4567", "", false},
		{"(555) 123-45678", "", false},
		{"555-1234", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			require.Equal(t, tc.want, got)
		} else {
			require.ErrorIs(t, err, ErrInvalidPhone, tc.in)
		}
	}
}

func TestSubmitPhoneRejectsLocally(t *testing.T) {
	s := NewSession("evt-1")
	next, cmd, err := Transition(s, SubmitPhone{Input: "555-1234"})
	require.ErrorIs(t, err, ErrInvalidPhone)
	require.Nil(t, cmd)
	require.Equal(t, PhoneEntry, next.Step)
	require.Equal(t, None, next.Pending)
	require.Equal(t, MsgInvalidPhone, next.Outcome.Error)
	require.Empty(t, next.Phone)
}

func TestSubmitPhoneIssuesVerification(t *testing.T) {
	next, cmd, err := Transition(NewSession("evt-1"), SubmitPhone{Input: "(555) 123-4567"})
	require.NoError(t, err)
	require.Equal(t, VerifyPhone{Request: domain.VerifyPhoneRequest{Phone: "5551234567"}}, cmd)
	require.Equal(t, Verifying, next.Pending)
	require.Equal(t, PhoneEntry, next.Step)
	require.Equal(t, "5551234567", next.Phone)
}

func TestKnownIdentitySkipsDetails(t *testing.T) {
	s, _, err := Transition(NewSession("evt-1"), SubmitPhone{Input: "5551234567"})
	require.NoError(t, err)

	s, cmd, err := Transition(s, PhoneVerified{UserExists: true, Identity: &domain.Identity{Name: "Jane"}})
	require.NoError(t, err)
	require.Equal(t, PhoneEntry, s.Step)
	require.Equal(t, Submitting, s.Pending)
	require.Equal(t, "Jane", s.KnownIdentity.Name)
	require.Equal(t, SubmitRegistration{Request: domain.RegisterRequest{Phone: "5551234567", EventID: "evt-1"}}, cmd)

	s, cmd, err = Transition(s, Registered{Message: "See you there"})
	require.NoError(t, err)
	require.Nil(t, cmd)
	require.Equal(t, Success, s.Step)
	require.Equal(t, "See you there", s.Outcome.Message)
}

func TestNewIdentityCollectsDetails(t *testing.T) {
	s, _, _ := Transition(NewSession("evt-1"), SubmitPhone{Input: "5551234567"})
	s, cmd, err := Transition(s, PhoneVerified{UserExists: false})
	require.NoError(t, err)
	require.Nil(t, cmd)
	require.Equal(t, DetailsCollection, s.Step)
	require.Nil(t, s.KnownIdentity)

	rejected, cmd, err := Transition(s, SubmitDetails{Name: "", Email: "a@b.com"})
	require.ErrorIs(t, err, ErrInvalidDetails)
	require.Nil(t, cmd)
	require.Equal(t, DetailsCollection, rejected.Step)
	require.Equal(t, None, rejected.Pending)
	require.Equal(t, MsgInvalidDetails, rejected.Outcome.Error)

	_, _, err = Transition(s, SubmitDetails{Name: "   ", Email: "a@b.com"})
	require.ErrorIs(t, err, ErrInvalidDetails)

	s, cmd, err = Transition(rejected, SubmitDetails{Name: " Sam ", Email: "sam@example.com"})
	require.NoError(t, err)
	require.Equal(t, Submitting, s.Pending)
	require.Equal(t, SubmitRegistration{Request: domain.RegisterRequest{
		Phone: "5551234567", EventID: "evt-1", Name: "Sam", Email: "sam@example.com",
	}}, cmd)
	require.Empty(t, s.Outcome.Error)
}

func TestRegistrationFailureKeepsStep(t *testing.T) {
	s, _, _ := Transition(NewSession("evt-1"), SubmitPhone{Input: "5551234567"})
	s, _, _ = Transition(s, PhoneVerified{UserExists: false})
	s, _, _ = Transition(s, SubmitDetails{Name: "Sam", Email: "sam@example.com"})

	s, cmd, err := Transition(s, RegistrationFailed{Reason: "Event full"})
	require.ErrorIs(t, err, ErrRegistrationFailed)
	require.Nil(t, cmd)
	require.Equal(t, DetailsCollection, s.Step)
	require.Equal(t, None, s.Pending)
	require.Equal(t, "Event full", s.Outcome.Error)

	// a manual retry is a fresh attempt
	s, cmd, err = Transition(s, SubmitDetails{Name: "Sam", Email: "sam@example.com"})
	require.NoError(t, err)
	require.NotNil(t, cmd)
	require.Equal(t, Submitting, s.Pending)
}

func TestVerificationFailureStaysInPhoneEntry(t *testing.T) {
	s, _, _ := Transition(NewSession("evt-1"), SubmitPhone{Input: "5551234567"})
	s, _, err := Transition(s, PhoneVerificationFailed{Reason: "Blocked number"})
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.Equal(t, PhoneEntry, s.Step)
	require.Equal(t, None, s.Pending)
	require.Equal(t, "Blocked number", s.Outcome.Error)
}

func TestBusyAndStale(t *testing.T) {
	s, _, _ := Transition(NewSession("evt-1"), SubmitPhone{Input: "5551234567"})

	again, cmd, err := Transition(s, SubmitPhone{Input: "5559876543"})
	require.ErrorIs(t, err, ErrBusy)
	require.Nil(t, cmd)
	require.Equal(t, s, again)

	stale, _, err := Transition(s, Registered{Message: "late"})
	require.ErrorIs(t, err, ErrStale)
	require.Equal(t, s, stale)

	_, _, err = Transition(NewSession("evt-1"), PhoneVerified{UserExists: true})
	require.ErrorIs(t, err, ErrStale)
}

func TestWrongStep(t *testing.T) {
	_, _, err := Transition(NewSession("evt-1"), SubmitDetails{Name: "Sam", Email: "sam@example.com"})
	require.ErrorIs(t, err, ErrWrongStep)

	_, _, err = Transition(NewSession("evt-1"), Dismiss{})
	require.ErrorIs(t, err, ErrWrongStep)
}

func TestDismissResetsSession(t *testing.T) {
	s, _, _ := Transition(NewSession("evt-1"), SubmitPhone{Input: "5551234567"})
	s, _, _ = Transition(s, PhoneVerified{UserExists: true})
	s, _, _ = Transition(s, Registered{Message: "ok"})
	require.Equal(t, Success, s.Step)

	fresh, cmd, err := Transition(s, Dismiss{})
	require.NoError(t, err)
	require.Nil(t, cmd)
	require.Equal(t, PhoneEntry, fresh.Step)
	require.Equal(t, "evt-1", fresh.EventID)
	require.NotEqual(t, s.ID, fresh.ID)
	require.Empty(t, fresh.Phone)
	require.Empty(t, fresh.Outcome)
}
