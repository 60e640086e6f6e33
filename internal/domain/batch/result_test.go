package batch

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/vecdesk/internal/domain"
)

func TestStored(t *testing.T) {
	it := Stored(2, "rec-1")
	if it.ID() != "rec-1" || it.Index() != 2 {
		t.Errorf("got (%d, %q)", it.Index(), it.ID())
	}
	if it.Status() != StatusStored {
		t.Errorf("Status() = %q, want %q", it.Status(), StatusStored)
	}
	if it.Err() != nil {
		t.Errorf("Err() = %v, want nil", it.Err())
	}
}

func TestFailed(t *testing.T) {
	err := errors.New("something failed")
	it := Failed(1, "", err)
	if it.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", it.Status(), StatusFailed)
	}
	if !errors.Is(it.Err(), err) {
		t.Errorf("Err() = %v, want %v", it.Err(), err)
	}
}

func TestNewResult_SplitsAndOrders(t *testing.T) {
	items := []Item{
		Stored(3, "d"),
		Failed(1, "", domain.ErrEmptyInput),
		Stored(0, "a"),
		Stored(2, "c"),
	}
	r := NewResult(4, items)

	if !r.Complete() {
		t.Fatal("expected complete result")
	}
	if len(r.Succeeded) != 3 || len(r.Failed) != 1 {
		t.Fatalf("got %d succeeded, %d failed", len(r.Succeeded), len(r.Failed))
	}
	for i, want := range []int{0, 2, 3} {
		if r.Succeeded[i].Index() != want {
			t.Errorf("Succeeded[%d].Index() = %d, want %d", i, r.Succeeded[i].Index(), want)
		}
	}
	if r.Failed[0].Index() != 1 {
		t.Errorf("Failed[0].Index() = %d", r.Failed[0].Index())
	}
}

func TestResult_Err(t *testing.T) {
	ok := NewResult(1, []Item{Stored(0, "a")})
	if ok.Err() != nil {
		t.Errorf("Err() = %v, want nil", ok.Err())
	}

	partial := NewResult(2, []Item{Stored(0, "a"), Failed(1, "", errors.New("x"))})
	err := partial.Err()
	if !errors.Is(err, domain.ErrPartialBatchFailure) {
		t.Fatalf("expected ErrPartialBatchFailure, got %v", err)
	}
	var pf *PartialFailure
	if !errors.As(err, &pf) || pf.Failed != 1 || pf.Total != 2 {
		t.Errorf("PartialFailure = %+v", pf)
	}
}

func TestNewResult_Incomplete(t *testing.T) {
	r := NewResult(3, []Item{Stored(0, "a")})
	if r.Complete() {
		t.Error("expected incomplete result")
	}
}
