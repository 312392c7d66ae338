// Package dialogue implements the session-scoped dialogue controller: the
// state machine that decides, per incoming message, whether to invoke tools,
// continue an order flow, or hand the turn to the generation engine.
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/room4-2/OpenCanteen/catalog"
	"github.com/room4-2/OpenCanteen/config"
	"github.com/room4-2/OpenCanteen/engine"
	"github.com/room4-2/OpenCanteen/fragment"
	"github.com/room4-2/OpenCanteen/order"
	"github.com/room4-2/OpenCanteen/session"
	"github.com/room4-2/OpenCanteen/validate"
)

// Gateway is the tool surface the controller verifies catalog facts through.
// *catalog.Client implements it; tests supply scripted fakes.
type Gateway interface {
	LookupItem(ctx context.Context, name string) (catalog.LookupResult, error)
	FullMenu(ctx context.Context) ([]catalog.Item, error)
	ValidatesRemotely() bool
	ValidateField(ctx context.Context, field, value string) (validate.Result, error)
}

// Sink consumes outbound fragments. A sink error means the client stopped
// reading and is handled like a cancellation.
type Sink func(fragment.Fragment) error

// Request is one incoming chat turn.
type Request struct {
	Message   string
	History   []session.Turn
	SessionID string
}

const (
	cantVerifyText = "I'm sorry, I can't verify menu information right now. Please try again in a moment."
	apologyText    = "I'm sorry, something went wrong on my end. Please try again."
	cancelledText  = "Order cancelled. How else can I help you today?"
)

// Controller drives one turn at a time per session.
type Controller struct {
	cfg       *config.Config
	store     *session.Store
	gateway   Gateway
	engine    engine.Engine
	validator *validate.Validator
	ledger    *order.Ledger
}

func NewController(cfg *config.Config, store *session.Store, gw Gateway, eng engine.Engine, ledger *order.Ledger) *Controller {
	return &Controller{
		cfg:     cfg,
		store:   store,
		gateway: gw,
		engine:  eng,
		validator: &validate.Validator{
			RFIDDigits:     cfg.RFIDDigits,
			Buildings:      cfg.Buildings,
			PhoneMinDigits: cfg.PhoneMinDigits,
			PhoneMaxDigits: cfg.PhoneMaxDigits,
		},
		ledger: ledger,
	}
}

// turn carries the working state for one request. Stage and draft are
// mutated on copies; the session is only updated at commit time, so an
// aborted turn can never advance or regress the state machine.
type turn struct {
	ctx  context.Context
	msg  string
	sink Sink
	acc  fragment.Accumulator

	history []session.Turn

	stage order.Stage
	draft *order.Draft

	// Pre-turn snapshot, restored if generation fails after the flow state
	// was already advanced within this turn.
	preStage order.Stage
	preDraft *order.Draft

	inquiry    []order.Item
	inquirySet bool

	sinkBroken bool
}

func (t *turn) emit(f fragment.Fragment) error {
	if err := t.sink(f); err != nil {
		t.sinkBroken = true
		return err
	}
	t.acc.Add(f)
	return nil
}

func (t *turn) say(text string) error    { return t.emit(fragment.Content(text)) }
func (t *turn) status(text string) error { return t.emit(fragment.Status(text)) }

// HandleTurn processes one chat message and streams the response through
// sink. It returns the authoritative session id. Cancellation mid-stream is
// not an error: partial content is preserved in history, marked stopped, and
// the stage machine is left exactly as it was before the turn.
func (c *Controller) HandleTurn(ctx context.Context, req Request, sink Sink) (string, error) {
	sess := c.store.GetOrCreate(ctx, req.SessionID)
	if err := sess.BeginTurn(ctx); err != nil {
		return sess.ID, err
	}
	defer sess.EndTurn()

	sess.SeedHistory(req.History)

	t := &turn{
		ctx:     ctx,
		msg:     strings.TrimSpace(req.Message),
		sink:    sink,
		history: sess.History(),
		stage:   sess.Stage(),
		draft:   sess.Draft().Clone(),
		inquiry: sess.LastInquiry(),
	}
	t.preStage, t.preDraft = t.stage, t.draft.Clone()

	runErr := c.run(t)

	sess.AppendTurn(session.Turn{Role: session.RoleUser, Text: t.msg})

	if runErr != nil {
		if cancelled(t, runErr) {
			if t.acc.HasContent() {
				sess.AppendTurn(session.Turn{Role: session.RoleAssistant, Text: t.acc.Content(), Stopped: true})
			}
			c.store.Touch(sess)
			log.Debug().Str("session", sess.ID).Msg("turn cancelled by client")
			return sess.ID, nil
		}
		// Unexpected failure: one generic apology turn, stage unchanged.
		log.Error().Err(runErr).Str("session", sess.ID).Msg("turn failed")
		_ = t.say(apologyText)
		sess.AppendTurn(session.Turn{Role: session.RoleAssistant, Text: t.acc.Content()})
		c.store.Touch(sess)
		return sess.ID, nil
	}

	sess.AppendTurn(session.Turn{Role: session.RoleAssistant, Text: t.acc.Content()})
	sess.SetFlow(t.stage, t.draft)
	if t.inquirySet {
		sess.SetLastInquiry(t.inquiry)
	}
	c.store.Touch(sess)
	return sess.ID, nil
}

func cancelled(t *turn, err error) bool {
	return t.sinkBroken || t.ctx.Err() != nil ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Controller) run(t *turn) error {
	// An explicit cancellation keyword wins over every other interpretation
	// while an order flow is active.
	if t.stage.InProgress() && isCancellation(t.msg) {
		return c.cancelFlow(t)
	}

	switch {
	case t.stage.Collecting():
		return c.collectField(t)
	case t.stage == order.StagePendingConfirmation:
		return c.confirm(t)
	default:
		return c.generalTurn(t)
	}
}

func (c *Controller) cancelFlow(t *turn) error {
	t.stage = order.StageIdle
	t.draft = nil
	return t.say(cancelledText)
}

// collectField handles one field answer. An in-flight order is never
// abandoned by ambiguous input: whatever the message looks like, this stage
// only accepts a field value or an explicit cancellation.
func (c *Controller) collectField(t *turn) error {
	field, _ := order.FieldFor(t.stage)

	if !plausibleFieldAnswer(field, t.msg) {
		return t.say("I still need this to finish your order. " + c.promptFor(field))
	}

	value, result, err := c.validateField(t.ctx, field, t.msg)
	if err != nil {
		if t.ctx.Err() != nil {
			return t.ctx.Err()
		}
		log.Warn().Err(err).Str("field", string(field)).Msg("remote validation unavailable")
		return t.say(cantVerifyText)
	}
	if !result.Valid {
		// Remain in the same state; re-prompt with the specific reason.
		return t.say(result.Reason)
	}

	t.draft.SetField(field, value)

	if next, incomplete := t.draft.FirstIncomplete(); incomplete {
		t.stage = order.StageFor(next)
		return t.say(c.promptFor(next))
	}
	return c.completeOrder(t)
}

func (c *Controller) validateField(ctx context.Context, field order.Field, text string) (string, validate.Result, error) {
	var value string
	var result validate.Result
	switch field {
	case order.FieldRFID:
		value, result = c.validator.RFID(text)
	case order.FieldBuilding:
		value, result = c.validator.Building(text)
	case order.FieldPhone:
		value, result = c.validator.Phone(text)
	case order.FieldSpecial:
		value, result = c.validator.SpecialRequest(text)
	}
	if !result.Valid || !c.gateway.ValidatesRemotely() || field == order.FieldSpecial {
		return value, result, nil
	}
	// The catalog service is authoritative for the value sets it owns;
	// confirm the locally extracted value with it.
	remote, err := c.gateway.ValidateField(ctx, string(field), value)
	if err != nil {
		return "", validate.Result{}, err
	}
	return value, remote, nil
}

func (c *Controller) completeOrder(t *turn) error {
	rec := order.RecordFromDraft(t.draft, time.Now())
	if err := c.ledger.Append(rec); err != nil {
		log.Error().Err(err).Msg("failed to persist order")
		// Stay in the current collecting state so the user can retry.
		return t.say("I'm sorry, I couldn't record your order just now. Please send that once more.")
	}

	confirmation := fmt.Sprintf(
		"✅ Order confirmed for: %s. Total: AED %.2f. RFID: %s, Building: %s, Phone: %s. Special Request: %s.",
		t.draft.ItemsText(), t.draft.Total(),
		t.draft.Fields[order.FieldRFID].Value,
		t.draft.Fields[order.FieldBuilding].Value,
		t.draft.Fields[order.FieldPhone].Value,
		t.draft.Fields[order.FieldSpecial].Value,
	)
	t.stage = order.StageIdle
	t.draft = nil
	return t.say(confirmation)
}

// confirm handles the pending-confirmation stage: yes advances to field
// collection, no cancels, "add ..." extends the draft, and a fresh item
// inquiry replaces the unconfirmed draft.
func (c *Controller) confirm(t *turn) error {
	candidates := catalog.ExtractCandidates(t.msg)

	switch {
	case isDenial(t.msg):
		return c.cancelFlow(t)

	case len(candidates) > 0 && wantsToAddMore(t.msg):
		found, notFound, err := c.resolve(t, candidates)
		if err != nil {
			if t.ctx.Err() != nil {
				return t.ctx.Err()
			}
			return t.say(cantVerifyText)
		}
		if len(found) == 0 {
			return t.say("I couldn't find those items on the menu. Would you like to confirm your current order or try adding different items?")
		}
		for _, item := range found {
			t.draft.AddItem(item.Name, item.UnitPrice, item.Quantity)
		}
		reply := "Added to your order! Your current order:\n\n" + t.draft.Summary()
		if len(notFound) > 0 {
			reply += "\n\nNot on the menu: " + strings.Join(notFound, ", ")
		}
		return t.say(reply + "\n\nWould you like to confirm this order or add more items?")

	case isAffirmative(t.msg):
		next, _ := t.draft.FirstIncomplete()
		t.stage = order.StageFor(next)
		return t.say("Great! " + c.promptFor(next))

	case len(candidates) > 0:
		// A new, unrelated item inquiry overrides the unconfirmed draft.
		t.stage = order.StageIdle
		t.draft = nil
		return c.generalTurn(t)

	default:
		return t.say("Your current order:\n\n" + t.draft.Summary() +
			"\n\nPlease respond with 'yes' to confirm, 'no' to cancel, or tell me what you'd like to add.")
	}
}

// generalTurn handles idle and item-inquiry stages: resolve any item
// references through the gateway, gather tool contexts, then let the engine
// phrase the answer from verified facts only.
func (c *Controller) generalTurn(t *turn) error {
	candidates := catalog.ExtractCandidates(t.msg)

	// "Yes, order it" after an availability answer: promote the inquired
	// items into a draft and ask for confirmation.
	if t.stage == order.StageItemInquiry && len(candidates) == 0 &&
		(isAffirmative(t.msg) || wantsToOrder(t.msg)) && len(t.inquiry) > 0 {
		draft := order.NewDraft()
		for _, item := range t.inquiry {
			draft.AddItem(item.Name, item.UnitPrice, item.Quantity)
		}
		t.draft = draft
		t.stage = order.StagePendingConfirmation
		return t.say("Your order:\n\n" + draft.Summary() +
			"\n\nPlease respond with 'yes' to confirm, 'no' to cancel, or tell me what you'd like to add.")
	}

	var contexts []string

	if wantsFullMenu(t.msg) {
		if err := t.status("[Fetching menu data...]"); err != nil {
			return err
		}
		menu, err := c.gateway.FullMenu(t.ctx)
		if err != nil {
			if t.ctx.Err() != nil {
				return t.ctx.Err()
			}
			return t.say(cantVerifyText)
		}
		contexts = append(contexts, menuContext(menu))
	}

	found, notFound, err := c.resolve(t, candidates)
	if err != nil {
		if t.ctx.Err() != nil {
			return t.ctx.Err()
		}
		return t.say(cantVerifyText)
	}

	if len(found) > 0 {
		var b strings.Builder
		b.WriteString("[TOOL] Verified menu items:\n")
		for _, item := range found {
			fmt.Fprintf(&b, "- %s: AED %.2f\n", item.Name, item.UnitPrice)
		}
		contexts = append(contexts, b.String())

		if wantsToOrder(t.msg) {
			draft := order.NewDraft()
			for _, item := range found {
				draft.AddItem(item.Name, item.UnitPrice, item.Quantity)
			}
			t.draft = draft
			t.stage = order.StagePendingConfirmation
			contexts = append(contexts,
				"[ORDER FLOW] The user wants to order the verified items above. Ask them to confirm the order by responding with 'yes' or 'no'. They can also add more items.")
		} else {
			t.stage = order.StageItemInquiry
			t.inquiry = found
			t.inquirySet = true
		}
	}
	if len(notFound) > 0 {
		contexts = append(contexts,
			"[TOOL] These items are NOT on the menu: "+strings.Join(notFound, ", ")+
				". Tell the user they are unavailable. Do not offer similarly named items as available.")
	}

	if wantsOpenRestaurants(t.msg) {
		if err := t.status("[Checking which restaurants are open... Please wait.]"); err != nil {
			return err
		}
		contexts = append(contexts, openRestaurantsContext(c.cfg.OpenNow(time.Now())))
	}

	prompt := buildPrompt(contexts, t.history, t.msg)

	if err := c.engine.Stream(t.ctx, prompt, func(text string) error {
		return t.say(text)
	}); err != nil {
		if cancelled(t, err) {
			return err
		}
		// Generation failure: generic apology, no state advances, no
		// partial order data committed.
		log.Error().Err(err).Msg("generation failed")
		t.stage, t.draft = t.preStage, t.preDraft
		t.inquirySet = false
		_ = t.say(apologyText)
		return nil
	}
	return nil
}

// resolve looks up every candidate independently through the gateway,
// emitting a status fragment per lookup. An item joins the result only if
// the gateway confirmed it; misses are reported, never substituted.
func (c *Controller) resolve(t *turn, candidates []catalog.Candidate) ([]order.Item, []string, error) {
	var found []order.Item
	var notFound []string
	for _, cand := range candidates {
		if err := t.status(fmt.Sprintf("[Looking up '%s' in the menu...]", cand.Text)); err != nil {
			return nil, nil, err
		}
		res, err := c.gateway.LookupItem(t.ctx, cand.Text)
		if err != nil {
			return nil, nil, err
		}
		if res.Found {
			found = append(found, order.Item{
				Name:      res.Item.Name,
				UnitPrice: res.Item.Price,
				Quantity:  cand.Quantity,
			})
		} else {
			notFound = append(notFound, cand.Text)
		}
	}
	return found, notFound, nil
}

func (c *Controller) promptFor(field order.Field) string {
	switch field {
	case order.FieldRFID:
		return fmt.Sprintf("Please provide the %d digits of your RFID card number (e.g., %s):",
			c.cfg.RFIDDigits, strings.Repeat("1", c.cfg.RFIDDigits))
	case order.FieldBuilding:
		return "Please select your building from the following options: " +
			strings.Join(c.cfg.Buildings, ", ")
	case order.FieldPhone:
		return "Please provide your phone number:"
	case order.FieldSpecial:
		return "Do you have any special requests for your order? (e.g., extra toppings, dietary restrictions) If not, just say 'no' or 'none':"
	}
	return ""
}

// plausibleFieldAnswer is the format pre-filter: it keeps pure noise from
// being run through validation, without itself judging validity.
func plausibleFieldAnswer(field order.Field, msg string) bool {
	switch field {
	case order.FieldRFID, order.FieldPhone:
		return validate.HasDigits(msg)
	case order.FieldBuilding:
		return strings.TrimSpace(msg) != ""
	default:
		return true
	}
}

func menuContext(menu []catalog.Item) string {
	if len(menu) == 0 {
		return "[TOOL] The menu is currently empty."
	}
	var b strings.Builder
	b.WriteString("[TOOL] Today's menu:\n")
	for _, item := range menu {
		fmt.Fprintf(&b, "- %s: AED %.2f\n", item.Name, item.Price)
	}
	return b.String()
}

func openRestaurantsContext(open []config.Restaurant) string {
	if len(open) == 0 {
		return "[TOOL] No restaurants are currently open."
	}
	var b strings.Builder
	b.WriteString("[TOOL] Open restaurants right now:\n")
	for _, r := range open {
		fmt.Fprintf(&b, "- %s (Open: %s - %s)\n", r.Name, r.Open, r.Close)
	}
	return b.String()
}
