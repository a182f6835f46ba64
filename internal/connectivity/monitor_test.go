package connectivity

import "testing"

func TestReportEmitsOnlyTransitions(t *testing.T) {
	var changes []bool
	m := New(Config{OnChange: func(online bool) { changes = append(changes, online) }})

	m.Report(true) // already online, no edge
	m.Report(false)
	m.Report(false) // repeat, no edge
	m.Report(true)

	if len(changes) != 2 || changes[0] != false || changes[1] != true {
		t.Fatalf("expected [offline online], got %v", changes)
	}
	if !m.Online() {
		t.Fatalf("expected online after last report")
	}
}

func TestStartWithoutProbeIsNoop(t *testing.T) {
	m := New(Config{})
	m.Start(t.Context())
	m.Stop()
}
