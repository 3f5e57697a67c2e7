// Package reception implements the order front-end: the
// read-eval-print loop that reads lines from an input stream, dispatches
// reserved verbs, and parses order lines into pizza jobs.
package reception

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/plazza/plazza/internal/pizza"
)

// Order is one parsed (type, size, quantity) triple from an order line.
type Order struct {
	Type     pizza.Type
	Size     pizza.Size
	Quantity int
}

// orderLineRegexp is the exact acceptance grammar: semicolon-separated
// triples of "<type> <SIZE> x<quantity>", type case-insensitive, size
// case-sensitive, quantity in [1,99] (enforced by the [1-9][0-9]*
// pattern plus the explicit range check in ParseOrders).
var orderLineRegexp = regexp.MustCompile(
	`^[a-zA-Z]+\s+(S|M|L|XL|XXL)\s+x[1-9][0-9]*(\s*;\s*[a-zA-Z]+\s+(S|M|L|XL|XXL)\s+x[1-9][0-9]*)*$`,
)

var tripleRegexp = regexp.MustCompile(`^([a-zA-Z]+)\s+(S|M|L|XL|XXL)\s+x([1-9][0-9]*)$`)

// ParseOrders validates and decodes an order line. A '#' truncates the
// line at the comment marker before matching. A non-matching line, an
// unrecognized type, or a quantity outside [1,99] is reported as a
// pizza.ParseError; the non-matching-line error carries a usage example.
func ParseOrders(line string) ([]Order, error) {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)

	if !orderLineRegexp.MatchString(line) {
		return nil, pizza.NewError(pizza.ParseError,
			"invalid order %q; expected e.g. \"margarita M x2; regina L x1\"", line)
	}

	var orders []Order
	for _, token := range strings.Split(line, ";") {
		token = strings.TrimSpace(token)
		m := tripleRegexp.FindStringSubmatch(token)
		if m == nil {
			return nil, pizza.NewError(pizza.ParseError, "invalid order triple %q", token)
		}
		typ, ok := pizza.ParseType(m[1])
		if !ok {
			return nil, pizza.NewError(pizza.ParseError, "unknown pizza type %q", m[1])
		}
		size, ok := pizza.ParseSize(m[2])
		if !ok {
			return nil, pizza.NewError(pizza.ParseError, "unknown pizza size %q", m[2])
		}
		qty, err := strconv.Atoi(m[3])
		if err != nil || qty < 1 || qty > 99 {
			return nil, pizza.NewError(pizza.ParseError, "quantity %q out of range [1,99]", m[3])
		}
		orders = append(orders, Order{Type: typ, Size: size, Quantity: qty})
	}
	return orders, nil
}
