package engine

import "testing"

func TestApplyKnownTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		state    State
		event    Event
		newState State
		changed  bool
	}{
		{"idle open precondition", Idle, EventOpenPrecondition, Opening, true},
		{"opening success", Opening, EventOpenSessionSuccess, Monitoring, true},
		{"opening terminal failure", Opening, EventOpenSessionFailureTerminal, Idle, true},
		{"monitoring tick", Monitoring, EventCheckSessionTick, Monitoring, false},
		{"monitoring alive", Monitoring, EventListSessionsAlive, Monitoring, false},
		{"monitoring gone", Monitoring, EventListSessionsGone, Idle, true},
		{"monitoring terminal failure", Monitoring, EventListSessionsFailureTerminal, Closing, true},
		{"monitoring external change", Monitoring, EventExternalChange, Closing, true},
		{"closing success", Closing, EventCloseSessionSuccess, Idle, true},
		{"closing terminal failure", Closing, EventCloseSessionFailureTerminal, Idle, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := Apply(tc.state, tc.event)

			if result.NewState != tc.newState {
				t.Errorf("NewState = %v, want %v", result.NewState, tc.newState)
			}

			if result.Changed != tc.changed {
				t.Errorf("Changed = %v, want %v", result.Changed, tc.changed)
			}

			if result.OldState != tc.state {
				t.Errorf("OldState = %v, want %v", result.OldState, tc.state)
			}
		})
	}
}

func TestApplyUnlistedPairIsIgnored(t *testing.T) {
	t.Parallel()

	result := Apply(Idle, EventCheckSessionTick)

	if result.Changed {
		t.Fatal("expected unlisted (state, event) pair to be a no-op")
	}

	if len(result.Actions) != 0 {
		t.Errorf("actions = %v, want none", result.Actions)
	}
}

func TestMonitoringExternalChangeCancelsBeforeClosing(t *testing.T) {
	t.Parallel()

	result := Apply(Monitoring, EventExternalChange)

	if len(result.Actions) == 0 || result.Actions[0] != ActionCancelAllTimers {
		t.Fatalf("actions = %v, want ActionCancelAllTimers first", result.Actions)
	}
}

func TestOpeningDispatchesAddressesThenOpenSession(t *testing.T) {
	t.Parallel()

	result := Apply(Idle, EventOpenPrecondition)

	want := []Action{ActionDispatchGetAddresses, ActionDispatchOpenSession}
	if len(result.Actions) != len(want) {
		t.Fatalf("actions = %v, want %v", result.Actions, want)
	}

	for i, a := range want {
		if result.Actions[i] != a {
			t.Errorf("actions[%d] = %v, want %v", i, result.Actions[i], a)
		}
	}
}
