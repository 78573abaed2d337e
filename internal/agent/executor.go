package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/glintcart/glintbot/internal/backend"
	"github.com/glintcart/glintbot/internal/domain"
	"github.com/glintcart/glintbot/internal/logging"
)

// CallerIdentity is who the current conversation belongs to. Tools that
// return customer data scope their answers to it.
type CallerIdentity struct {
	Channel string
	Phone   string
}

// Executor runs validated tool calls against the backend clients and
// renders results as JSON strings for the model.
type Executor struct {
	registry *Registry
	catalog  backend.CatalogClient
	orders   backend.OrderClient
	shipping backend.ShipmentClient
	faq      backend.FAQSearcher
	log      *logging.Logger
}

func NewExecutor(reg *Registry, catalog backend.CatalogClient, orders backend.OrderClient, shipping backend.ShipmentClient, faq backend.FAQSearcher, log *logging.Logger) *Executor {
	return &Executor{
		registry: reg,
		catalog:  catalog,
		orders:   orders,
		shipping: shipping,
		faq:      faq,
		log:      log.Sub("executor"),
	}
}

// Execute validates and runs one tool call. The returned string is
// always a JSON document the model can read: real results on success,
// and {"error": ...} payloads for validation failures, missing records,
// and backend outages. Execute itself only returns an error for
// programming mistakes; customer-visible failures become tool output.
func (e *Executor) Execute(ctx context.Context, caller CallerIdentity, name, rawArgs string) string {
	args, err := e.registry.Validate(name, rawArgs)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			e.log.Warn().Str("tool", name).Str("reason", verr.Reason).Msg("tool arguments rejected")
			return errJSON("invalid_arguments", verr.Reason)
		}
		return errJSON("invalid_arguments", err.Error())
	}

	out, err := e.dispatch(ctx, caller, name, args)
	if err != nil {
		e.log.Error().Err(err).Str("tool", name).Msg("tool execution failed")
		return errJSON("backend_unavailable", "the service is temporarily unavailable, apologize and suggest trying again shortly")
	}
	return out
}

func (e *Executor) dispatch(ctx context.Context, caller CallerIdentity, name string, args map[string]any) (string, error) {
	switch name {
	case "search_catalog":
		return e.searchCatalog(ctx, args)
	case "get_product":
		return e.getProduct(ctx, args)
	case "get_order_status":
		return e.getOrderStatus(ctx, caller, args)
	case "get_order_history":
		return e.getOrderHistory(ctx, caller, args)
	case "search_faq":
		return e.searchFAQ(ctx, args)
	case "track_shipment":
		return e.trackShipment(ctx, args)
	default:
		return errJSON("invalid_arguments", "unknown tool "+name), nil
	}
}

func (e *Executor) searchCatalog(ctx context.Context, args map[string]any) (string, error) {
	products, err := e.catalog.Search(ctx, strArg(args, "query"), intArg(args, "limit", 5))
	if err != nil {
		return "", err
	}
	if len(products) == 0 {
		return errJSON("not_found", "no matching products"), nil
	}
	return marshal(map[string]any{"products": products})
}

func (e *Executor) getProduct(ctx context.Context, args map[string]any) (string, error) {
	p, err := e.catalog.GetProduct(ctx, strArg(args, "product_id"))
	if err != nil {
		return "", err
	}
	if p == nil {
		return errJSON("not_found", "no such product"), nil
	}
	return marshal(p)
}

// getOrderStatus enforces ownership on voice calls: the order's phone
// must match the caller's. A mismatch is answered exactly like a
// missing order so the tool cannot be used to probe other customers'
// orders.
func (e *Executor) getOrderStatus(ctx context.Context, caller CallerIdentity, args map[string]any) (string, error) {
	orderID := strArg(args, "order_id")
	o, err := e.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o == nil {
		return errJSON("not_found", "no order found with that ID"), nil
	}
	if caller.Channel == "voice" && !domain.SamePhone(o.CustomerPhone, caller.Phone) {
		e.log.Warn().
			Str("order_id", orderID).
			Str("caller_phone", caller.Phone).
			Msg("order lookup denied: caller phone does not match order")
		return errJSON("not_found", "no order found with that ID"), nil
	}
	return marshal(o)
}

func (e *Executor) getOrderHistory(ctx context.Context, caller CallerIdentity, args map[string]any) (string, error) {
	if caller.Phone == "" {
		return errJSON("not_found", "no customer phone on this conversation"), nil
	}
	orders, err := e.orders.GetByPhone(ctx, caller.Phone, intArg(args, "limit", 5))
	if err != nil {
		return "", err
	}
	if len(orders) == 0 {
		return errJSON("not_found", "no orders found for this customer"), nil
	}
	return marshal(map[string]any{"orders": orders})
}

func (e *Executor) searchFAQ(ctx context.Context, args map[string]any) (string, error) {
	answers, err := e.faq.Search(ctx, strArg(args, "query"), intArg(args, "limit", 3))
	if err != nil {
		return "", err
	}
	if len(answers) == 0 {
		return errJSON("not_found", "nothing relevant in the knowledge base"), nil
	}
	return marshal(map[string]any{"results": answers})
}

func (e *Executor) trackShipment(ctx context.Context, args map[string]any) (string, error) {
	info, err := e.shipping.TrackByAWB(ctx, strArg(args, "awb"))
	if err != nil {
		return "", err
	}
	if info == nil {
		return errJSON("not_found", "no tracking record for that AWB"), nil
	}
	return marshal(info)
}

func strArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return def
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding tool result: %w", err)
	}
	return string(b), nil
}

func errJSON(kind, message string) string {
	b, _ := json.Marshal(map[string]string{"error": kind, "message": message})
	return string(b)
}
