// Package engine implements the moderation decision procedure: one inbound
// message in, at most one of {ignore, execute command, delete+warn,
// delete+remove} out. Messages are processed strictly sequentially by a
// single worker so warning-count increments and threshold-crossing removal
// decisions never race, while the enqueue path never blocks transport
// delivery.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/modguard/modguard/internal/audit"
	"github.com/modguard/modguard/internal/command"
	"github.com/modguard/modguard/internal/dedup"
	"github.com/modguard/modguard/internal/identity"
	"github.com/modguard/modguard/internal/metrics"
	"github.com/modguard/modguard/internal/ratelimit"
	"github.com/modguard/modguard/internal/textmatch"
	"github.com/modguard/modguard/internal/transport"
	"github.com/modguard/modguard/internal/warnings"
)

// Config holds the moderation policy.
type Config struct {
	Groups        []string // group names the engine moderates
	Authorized    []string // identities permitted to issue commands
	Threshold     int      // strike count that triggers removal
	InitialActive bool     // moderation mode at startup
	ResetOnStart  bool     // "start moderation" clears all warnings
}

// Deps collects the engine's collaborators. Limiter and Audit are optional;
// nil disables reply throttling and the audit trail respectively.
type Deps struct {
	Transport transport.Client
	Resolver  *identity.Resolver
	Matcher   *textmatch.Matcher
	Warnings  *warnings.Store
	Ledger    *dedup.Ledger
	Limiter   *ratelimit.Limiter
	Audit     *audit.Store
}

// Engine owns the moderation state machine and the sequential queue.
type Engine struct {
	cfg      Config
	tc       transport.Client
	resolver *identity.Resolver
	matcher  *textmatch.Matcher
	warnings *warnings.Store
	ledger   *dedup.Ledger
	limiter  *ratelimit.Limiter
	audit    *audit.Store

	groups map[string]struct{}

	mu     sync.Mutex
	active bool

	queue *fifo
	done  chan struct{}
}

// New creates an Engine. Run must be called to start the decision worker.
func New(cfg Config, deps Deps) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	groups := make(map[string]struct{}, len(cfg.Groups))
	for _, g := range cfg.Groups {
		groups[g] = struct{}{}
	}
	return &Engine{
		cfg:      cfg,
		tc:       deps.Transport,
		resolver: deps.Resolver,
		matcher:  deps.Matcher,
		warnings: deps.Warnings,
		ledger:   deps.Ledger,
		limiter:  deps.Limiter,
		audit:    deps.Audit,
		groups:   groups,
		active:   cfg.InitialActive,
		queue:    newFifo(),
		done:     make(chan struct{}),
	}
}

// Active reports whether content moderation is currently enforced.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) setActive(v bool) {
	e.mu.Lock()
	e.active = v
	e.mu.Unlock()
}

// Enqueue adds an inbound message to the processing queue and returns
// immediately. Messages arriving after shutdown began are dropped.
func (e *Engine) Enqueue(msg transport.Message) {
	if e.queue.push(msg) {
		metrics.QueueDepth.Inc()
	}
}

// Run consumes the queue until ctx is cancelled, then drains what is already
// queued and closes Done. Each message's decision procedure runs to
// completion once started; there is no mid-decision cancellation.
func (e *Engine) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		e.queue.close()
	}()

	for {
		msg, ok := e.queue.pop()
		if !ok {
			break
		}
		metrics.QueueDepth.Dec()
		e.process(msg)
	}
	close(e.done)
}

// Done is closed once Run has drained the queue and returned.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// process runs the full decision procedure for one message. An unexpected
// failure is caught and treated as "discard this message" so one bad message
// can never stall the queue.
func (e *Engine) process(msg transport.Message) {
	start := time.Now()
	outcome := "error"
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[engine] panic processing message id=%q: %v (discarded)", msg.ID, r)
			outcome = "error"
		}
		metrics.MessagesTotal.WithLabelValues(outcome).Inc()
		metrics.DecisionLatency.Observe(time.Since(start).Seconds())
	}()

	if msg.ID != "" {
		if e.ledger.Seen(msg.ID) {
			outcome = "deduped"
			return
		}
		ts := time.Now()
		if msg.Ts > 0 {
			ts = time.Unix(msg.Ts, 0)
		}
		e.ledger.MarkSeen(msg.ID, ts)
	}

	if !msg.IsGroup || !e.moderated(msg.GroupName) {
		outcome = "out_of_scope"
		return
	}

	sender := e.resolver.Resolve(msg.SenderRaw)

	if cmd, ok := command.Parse(textmatch.Normalize(msg.Body)); ok {
		// Commands bypass content policy entirely, gating on authorization
		// instead, and work while moderation is inactive.
		e.handleCommand(msg, sender, cmd)
		outcome = "command"
		return
	}

	if !e.Active() {
		outcome = "inactive"
		return
	}

	if sender == "" {
		// Expected for system/non-text messages; nothing to count a strike
		// against, so not an error.
		outcome = "unattributable"
		return
	}

	term, ok := e.matcher.Match(msg.Body)
	if !ok {
		outcome = "clean"
		return
	}

	outcome = "violation"
	e.enforce(msg, sender, term)
}

func (e *Engine) moderated(group string) bool {
	_, ok := e.groups[group]
	return ok
}

// enforce deletes the violating message, applies a strike, and warns or
// removes the sender depending on the threshold.
func (e *Engine) enforce(msg transport.Message, sender, term string) {
	ctx := context.Background()
	group := msg.GroupName

	log.Printf("[engine] violation in %s by %s (term %q)", group, sender, term)

	if msg.ID != "" {
		e.deleteMessage(ctx, group, msg.ID, sender, term)
	}

	count := e.warnings.Increment(sender)
	e.warnings.Persist()

	if count < e.cfg.Threshold {
		text := fmt.Sprintf("@%s your message was removed: %q is not allowed here. Warning %d/%d.",
			sender, term, count, e.cfg.Threshold)
		e.send(ctx, group, text, audit.ActionWarn, sender, term, count)
		return
	}

	// At or above the threshold the engine always attempts removal; counts
	// above it occur when an earlier removal failed and the offender struck
	// again.
	e.send(ctx, group,
		fmt.Sprintf("@%s reached %d/%d warnings and will be removed.", sender, count, e.cfg.Threshold),
		audit.ActionWarn, sender, term, count)

	if err := e.tc.RemoveParticipant(ctx, group, sender); err != nil {
		log.Printf("[engine] remove %s from %s failed: %v", sender, group, err)
		metrics.ActionsTotal.WithLabelValues(audit.ActionRemove, audit.OutcomeFailed).Inc()
		e.record(audit.ActionRemove, group, sender, term, count, audit.OutcomeFailed, err.Error())
		e.notice(ctx, group, fmt.Sprintf("I couldn't remove @%s. Manual removal is needed.", sender))
		return
	}

	metrics.ActionsTotal.WithLabelValues(audit.ActionRemove, audit.OutcomeOK).Inc()
	e.record(audit.ActionRemove, group, sender, term, count, audit.OutcomeOK, "")
	e.warnings.Reset(sender)
	e.warnings.Persist()
}

// deleteMessage requests deletion with one retry. Failure is surfaced to the
// group as a capability notice, never retried further.
func (e *Engine) deleteMessage(ctx context.Context, group, messageID, sender, term string) {
	err := e.tc.DeleteMessage(ctx, group, messageID, true)
	if err != nil {
		log.Printf("[engine] delete %s in %s failed: %v (retrying once)", messageID, group, err)
		err = e.tc.DeleteMessage(ctx, group, messageID, true)
	}
	if err != nil {
		log.Printf("[engine] delete %s in %s failed after retry: %v", messageID, group, err)
		metrics.ActionsTotal.WithLabelValues(audit.ActionDelete, audit.OutcomeFailed).Inc()
		e.record(audit.ActionDelete, group, sender, term, 0, audit.OutcomeFailed, err.Error())
		e.notice(ctx, group, "I couldn't delete a message that breaks the rules. I may be missing admin rights.")
		return
	}
	metrics.ActionsTotal.WithLabelValues(audit.ActionDelete, audit.OutcomeOK).Inc()
	e.record(audit.ActionDelete, group, sender, term, 0, audit.OutcomeOK, "")
}

// handleCommand executes a recognized operator command, gating on the
// authorization whitelist.
func (e *Engine) handleCommand(msg transport.Message, sender string, cmd command.Command) {
	ctx := context.Background()
	group := msg.GroupName

	if sender == "" {
		// Unattributable command attempt: nothing to reply to, nothing to log
		// an identity for. Discard silently.
		return
	}

	if !identity.IsAuthorized(sender, e.cfg.Authorized) {
		log.Printf("[engine] unauthorized %s command from %s in %s", cmd.Type, sender, group)
		metrics.CommandsTotal.WithLabelValues(cmd.Type.String(), "denied").Inc()
		e.record(audit.ActionDeny, group, sender, "", 0, audit.OutcomeOK, cmd.Type.String())
		if e.allow(ctx, ratelimit.RuleDeny, sender) {
			e.reply(ctx, group, fmt.Sprintf("@%s you are not authorized to control moderation.", sender))
		}
		return
	}

	switch cmd.Type {
	case command.Start:
		if e.cfg.ResetOnStart {
			e.warnings.ResetAll()
			e.warnings.Persist()
		}
		e.setActive(true)
		log.Printf("[engine] moderation started by %s", sender)
		e.reply(ctx, group, "Moderation is now ON.")

	case command.Stop:
		e.setActive(false)
		log.Printf("[engine] moderation stopped by %s", sender)
		e.reply(ctx, group, "Moderation is now OFF.")

	case command.CheckWarnings:
		target := identity.Digits(cmd.Target)
		if target == "" {
			metrics.CommandsTotal.WithLabelValues(cmd.Type.String(), "usage").Inc()
			e.reply(ctx, group, "Usage: check warnings <number>")
			return
		}
		count := e.warnings.Get(target)
		e.reply(ctx, group, fmt.Sprintf("%s has %d/%d warnings.", target, count, e.cfg.Threshold))

	case command.ResetWarnings:
		target := identity.Digits(cmd.Target)
		if target == "" {
			metrics.CommandsTotal.WithLabelValues(cmd.Type.String(), "usage").Inc()
			e.reply(ctx, group, "Usage: reset warnings <number>")
			return
		}
		e.warnings.Reset(target)
		e.warnings.Persist()
		log.Printf("[engine] warnings for %s reset by %s", target, sender)
		e.reply(ctx, group, fmt.Sprintf("Warnings for %s cleared.", target))
	}

	metrics.CommandsTotal.WithLabelValues(cmd.Type.String(), "ok").Inc()
}

// send posts a warning/announcement tied to a strike and records it.
func (e *Engine) send(ctx context.Context, group, text, action, sender, term string, strikes int) {
	if err := e.tc.SendText(ctx, group, text); err != nil {
		log.Printf("[engine] send to %s failed: %v", group, err)
		metrics.ActionsTotal.WithLabelValues(action, audit.OutcomeFailed).Inc()
		e.record(action, group, sender, term, strikes, audit.OutcomeFailed, err.Error())
		return
	}
	metrics.ActionsTotal.WithLabelValues(action, audit.OutcomeOK).Inc()
	e.record(action, group, sender, term, strikes, audit.OutcomeOK, "")
}

// reply posts a command response. Failures are logged only.
func (e *Engine) reply(ctx context.Context, group, text string) {
	if err := e.tc.SendText(ctx, group, text); err != nil {
		log.Printf("[engine] reply to %s failed: %v", group, err)
	}
}

// notice posts a capability-failure notice, throttled per group.
func (e *Engine) notice(ctx context.Context, group, text string) {
	if !e.allow(ctx, ratelimit.RuleNotice, group) {
		return
	}
	if err := e.tc.SendText(ctx, group, text); err != nil {
		log.Printf("[engine] notice to %s failed: %v", group, err)
		metrics.ActionsTotal.WithLabelValues(audit.ActionNotice, audit.OutcomeFailed).Inc()
		return
	}
	metrics.ActionsTotal.WithLabelValues(audit.ActionNotice, audit.OutcomeOK).Inc()
}

// allow consults the optional reply-throttle limiter. A nil limiter, like a
// Redis failure inside it, always allows.
func (e *Engine) allow(ctx context.Context, rule ratelimit.Rule, key string) bool {
	if e.limiter == nil {
		return true
	}
	ok, _ := e.limiter.Allow(ctx, key, rule)
	return ok
}

// record appends to the audit trail, best-effort.
func (e *Engine) record(action, group, sender, term string, strikes int, outcome, detail string) {
	if e.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := e.audit.Record(ctx, &audit.Action{
		Group:    group,
		Identity: sender,
		Action:   action,
		Term:     term,
		Strikes:  strikes,
		Outcome:  outcome,
		Detail:   detail,
	})
	if err != nil {
		log.Printf("[engine] audit record failed: %v", err)
	}
}
