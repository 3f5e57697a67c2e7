package reception

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/plazza/plazza/internal/pizza"
)

// Dispatcher is the subset of the dispatcher's public contract the
// front-end needs; keeping it as an interface here (rather than
// importing the concrete type) keeps reception testable without a real
// fleet.
type Dispatcher interface {
	Distribute(job pizza.Job) error
	SweepIdle()
	DisplayStatus() []pizza.Status
}

// Reception is the read-eval-print loop: it parses orders, emits
// dispatch calls, and triggers an idle sweep every sweepEvery processed
// commands.
type Reception struct {
	in         *bufio.Scanner
	out        io.Writer
	dispatcher Dispatcher
	multiplier float64
	log        *slog.Logger

	commandCount int
	sweepEvery   int
}

const defaultSweepEvery = 10

// New builds a Reception reading from in and writing prompts/output to
// out.
func New(in io.Reader, out io.Writer, d Dispatcher, multiplier float64, log *slog.Logger) *Reception {
	return &Reception{
		in:         bufio.NewScanner(in),
		out:        out,
		dispatcher: d,
		multiplier: multiplier,
		log:        log,
		sweepEvery: defaultSweepEvery,
	}
}

// Run reads lines until end-of-input or a quit/exit command, handling
// each one. It never
// returns an error: parse, IPC, and scheduler errors are caught around
// each command and logged, matching the error handling design's "no
// error crashes the front-end" policy.
func (r *Reception) Run() {
	r.displayWelcome()
	for r.in.Scan() {
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}
		r.handleLine(line)
		if lower := strings.ToLower(line); lower == "quit" || lower == "exit" {
			return
		}
	}
}

func (r *Reception) handleLine(line string) {
	switch strings.ToLower(line) {
	case "status":
		r.printStatus()
	case "help":
		r.printHelp()
	case "quit", "exit":
		r.dispatcher.SweepIdle()
		return
	default:
		r.handleOrder(line)
	}

	r.commandCount++
	if r.commandCount%r.sweepEvery == 0 {
		r.dispatcher.SweepIdle()
	}
}

func (r *Reception) handleOrder(line string) {
	orders, err := ParseOrders(line)
	if err != nil {
		fmt.Fprintf(r.out, "Invalid order: %v\n", err)
		fmt.Fprintln(r.out, `Example: "margarita M x2; regina L x1"`)
		return
	}
	for _, order := range orders {
		cookTimeMs := int(math.Round(float64(order.Type.BaseCookSeconds()) * r.multiplier * 1000))
		job := pizza.Job{Type: order.Type, Size: order.Size, CookTimeMs: cookTimeMs}
		for i := 0; i < order.Quantity; i++ {
			if err := r.dispatcher.Distribute(job); err != nil {
				fmt.Fprintf(r.out, "Failed to dispatch %s %s: %v\n", order.Type, order.Size, err)
				r.log.Error("dispatch failed", "type", order.Type.String(), "size", order.Size.String(), "error", err)
			}
		}
	}
}

func (r *Reception) printStatus() {
	statuses := r.dispatcher.DisplayStatus()
	fmt.Fprintln(r.out, "\n=== KITCHEN STATUS ===")
	fmt.Fprintf(r.out, "Total kitchens: %d\n", len(statuses))
	if len(statuses) == 0 {
		fmt.Fprintln(r.out, "No active kitchens")
		fmt.Fprintln(r.out, "=====================")
		return
	}
	for _, s := range statuses {
		fmt.Fprintf(r.out, "\nKitchen %d:\n", s.WorkerID)
		fmt.Fprintf(r.out, "  Active cooks: %d/%d\n", s.ActiveCooks, s.TotalCooks)
		fmt.Fprintf(r.out, "  Pizzas in queue: %d/%d\n", s.QueuedJobs, s.MaxCapacity)
		fmt.Fprint(r.out, "  Ingredients: ")
		for i, ing := range pizza.AllIngredients {
			fmt.Fprintf(r.out, "%s:%d ", ing.String(), s.IngredientCounts[i])
		}
		fmt.Fprintln(r.out)
	}
	fmt.Fprintln(r.out, "=====================")
}

func (r *Reception) printHelp() {
	fmt.Fprint(r.out, helpText)
}

func (r *Reception) displayWelcome() {
	fmt.Fprint(r.out, welcomeBanner)
}

const welcomeBanner = `
  ____  _
 |  _ \| | __ _ ____ ______ _
 | |_) | |/ _` + "`" + ` |_  /_  /_  / _` + "`" + `|
 |  __/| | (_| |/ / / / / / (_| |
 |_|   |_|\__,_/___/___/___\__,_|

        WHO SAID ANYTHING ABOUT PIZZAS?
`

const helpText = `Commands:
  <type> <SIZE> x<quantity>[; ...]   place an order, e.g. "margarita M x2; regina L x1"
  status                              show fleet status
  help                                show this message
  quit / exit                         terminate

Pizza types: Regina, Margarita, Americana, Fantasia
Sizes: S, M, L, XL, XXL
`
