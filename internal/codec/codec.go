// Package codec implements the bijection between the in-memory pizza.Job
// and pizza.Status records and the flat text payloads carried inside
// framed IPC messages.
package codec

import (
	"strconv"
	"strings"

	"github.com/plazza/plazza/internal/pizza"
)

const (
	PizzaPrefix     = "PIZZA:"
	StatusPrefix    = "STATUS:"
	StatusRequest   = "STATUS_REQUEST"
	CompletedPrefix = "COMPLETED:"
)

// EncodeJob packs a PizzaJob as "<type_int>|<size_int>|<cook_time_ms>|<0|1>".
func EncodeJob(j pizza.Job) string {
	cooked := "0"
	if j.Cooked {
		cooked = "1"
	}
	return strings.Join([]string{
		strconv.Itoa(int(j.Type)),
		strconv.Itoa(int(j.Size)),
		strconv.Itoa(j.CookTimeMs),
		cooked,
	}, "|")
}

// DecodeJob unpacks a PizzaJob payload produced by EncodeJob.
func DecodeJob(payload string) (pizza.Job, error) {
	fields := strings.Split(payload, "|")
	if len(fields) != 4 {
		return pizza.Job{}, pizza.NewError(pizza.ParseError, "job payload %q: expected 4 fields, got %d", payload, len(fields))
	}
	typeInt, err := strconv.Atoi(fields[0])
	if err != nil {
		return pizza.Job{}, pizza.NewError(pizza.ParseError, "job payload %q: bad type field: %v", payload, err)
	}
	sizeInt, err := strconv.Atoi(fields[1])
	if err != nil {
		return pizza.Job{}, pizza.NewError(pizza.ParseError, "job payload %q: bad size field: %v", payload, err)
	}
	cookTimeMs, err := strconv.Atoi(fields[2])
	if err != nil {
		return pizza.Job{}, pizza.NewError(pizza.ParseError, "job payload %q: bad cook_time_ms field: %v", payload, err)
	}
	var cooked bool
	switch fields[3] {
	case "0":
		cooked = false
	case "1":
		cooked = true
	default:
		return pizza.Job{}, pizza.NewError(pizza.ParseError, "job payload %q: bad cooked flag: %q", payload, fields[3])
	}
	return pizza.Job{
		Type:       pizza.Type(typeInt),
		Size:       pizza.Size(sizeInt),
		CookTimeMs: cookTimeMs,
		Cooked:     cooked,
	}, nil
}

// EncodeStatus packs a Status as
// "<id>|<active>|<total>|<queued>|<capacity>|<i0,i1,...,i8>".
func EncodeStatus(s pizza.Status) string {
	counts := make([]string, len(s.IngredientCounts))
	for i, c := range s.IngredientCounts {
		counts[i] = strconv.Itoa(c)
	}
	return strings.Join([]string{
		strconv.Itoa(s.WorkerID),
		strconv.Itoa(s.ActiveCooks),
		strconv.Itoa(s.TotalCooks),
		strconv.Itoa(s.QueuedJobs),
		strconv.Itoa(s.MaxCapacity),
		strings.Join(counts, ","),
	}, "|")
}

// DecodeStatus unpacks a Status payload produced by EncodeStatus. The
// ingredient list must have exactly 9 entries for a valid status.
func DecodeStatus(payload string) (pizza.Status, error) {
	fields := strings.Split(payload, "|")
	if len(fields) != 6 {
		return pizza.Status{}, pizza.NewError(pizza.ParseError, "status payload %q: expected 6 fields, got %d", payload, len(fields))
	}
	workerID, err := strconv.Atoi(fields[0])
	if err != nil {
		return pizza.Status{}, pizza.NewError(pizza.ParseError, "status payload %q: bad worker id: %v", payload, err)
	}
	active, err := strconv.Atoi(fields[1])
	if err != nil {
		return pizza.Status{}, pizza.NewError(pizza.ParseError, "status payload %q: bad active count: %v", payload, err)
	}
	total, err := strconv.Atoi(fields[2])
	if err != nil {
		return pizza.Status{}, pizza.NewError(pizza.ParseError, "status payload %q: bad total count: %v", payload, err)
	}
	queued, err := strconv.Atoi(fields[3])
	if err != nil {
		return pizza.Status{}, pizza.NewError(pizza.ParseError, "status payload %q: bad queued count: %v", payload, err)
	}
	capacity, err := strconv.Atoi(fields[4])
	if err != nil {
		return pizza.Status{}, pizza.NewError(pizza.ParseError, "status payload %q: bad capacity: %v", payload, err)
	}
	rawCounts := strings.Split(fields[5], ",")
	if len(rawCounts) != 9 {
		return pizza.Status{}, pizza.NewError(pizza.ParseError, "status payload %q: expected 9 ingredient counts, got %d", payload, len(rawCounts))
	}
	var counts [9]int
	for i, r := range rawCounts {
		c, err := strconv.Atoi(r)
		if err != nil {
			return pizza.Status{}, pizza.NewError(pizza.ParseError, "status payload %q: bad ingredient count %d: %v", payload, i, err)
		}
		counts[i] = c
	}
	return pizza.Status{
		WorkerID:         workerID,
		ActiveCooks:      active,
		TotalCooks:       total,
		QueuedJobs:       queued,
		MaxCapacity:      capacity,
		IngredientCounts: counts,
	}, nil
}
