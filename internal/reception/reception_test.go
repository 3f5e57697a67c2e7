package reception

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plazza/plazza/internal/pizza"
	"github.com/plazza/plazza/internal/plazzalog"
)

type fakeDispatcher struct {
	distributed   []pizza.Job
	distributeErr error
	sweeps        int
	statuses      []pizza.Status
}

func (f *fakeDispatcher) Distribute(job pizza.Job) error {
	if f.distributeErr != nil {
		return f.distributeErr
	}
	f.distributed = append(f.distributed, job)
	return nil
}

func (f *fakeDispatcher) SweepIdle() { f.sweeps++ }

func (f *fakeDispatcher) DisplayStatus() []pizza.Status { return f.statuses }

func TestRunDispatchesOrderLine(t *testing.T) {
	d := &fakeDispatcher{}
	in := strings.NewReader("margarita S x2\n")
	var out bytes.Buffer
	r := New(in, &out, d, 1.0, plazzalog.New())
	r.Run()

	require.Len(t, d.distributed, 2)
	assert.Equal(t, pizza.Margarita, d.distributed[0].Type)
	assert.Equal(t, 1000, d.distributed[0].CookTimeMs)
}

func TestRunAppliesMultiplierToCookTime(t *testing.T) {
	d := &fakeDispatcher{}
	in := strings.NewReader("fantasia L x1\n")
	var out bytes.Buffer
	r := New(in, &out, d, 0.5, plazzalog.New())
	r.Run()

	require.Len(t, d.distributed, 1)
	assert.Equal(t, 2000, d.distributed[0].CookTimeMs)
}

func TestRunReportsInvalidOrder(t *testing.T) {
	d := &fakeDispatcher{}
	in := strings.NewReader("abcd XXL x1\n")
	var out bytes.Buffer
	r := New(in, &out, d, 1.0, plazzalog.New())
	r.Run()

	assert.Empty(t, d.distributed)
	assert.Contains(t, out.String(), "Invalid order")
}

func TestRunSweepsEveryTenCommands(t *testing.T) {
	d := &fakeDispatcher{}
	lines := strings.Repeat("status\n", 10)
	in := strings.NewReader(lines)
	var out bytes.Buffer
	r := New(in, &out, d, 1.0, plazzalog.New())
	r.Run()

	assert.Equal(t, 1, d.sweeps)
}

func TestStatusPrintsNoActiveKitchens(t *testing.T) {
	d := &fakeDispatcher{}
	in := strings.NewReader("status\n")
	var out bytes.Buffer
	r := New(in, &out, d, 1.0, plazzalog.New())
	r.Run()

	assert.Contains(t, out.String(), "No active kitchens")
}

func TestHelpPrintsUsage(t *testing.T) {
	d := &fakeDispatcher{}
	in := strings.NewReader("help\n")
	var out bytes.Buffer
	r := New(in, &out, d, 1.0, plazzalog.New())
	r.Run()

	assert.Contains(t, out.String(), "Commands:")
}
