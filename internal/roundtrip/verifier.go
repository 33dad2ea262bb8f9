package roundtrip

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
	"petermann-digital.de/pulsar-workshop/internal/pulsarclient"
)

// APIType prefixes the verifier's log file name.
const APIType = "nativeapi"

const optScenarioFile = "sf"

// Message properties carrying the roundtrip bookkeeping.
const (
	propRunID    = "rt_test_id"
	propProducer = "rt_producer_id"
	propSeq      = "rt_seq"
	propScenario = "rt_scenario"
)

type verifier struct {
	settings  config.Settings
	scenarios []Scenario

	client pulsar.Client
}

// RoundtripVerifier runs every scenario of a scenario file against the
// topic given with -t.
func RoundtripVerifier(settings config.Settings) harness.Program {
	v := &verifier{settings: settings}
	return harness.Program{
		APIType: APIType,
		Name:    "RoundtripVerifier",
		Short:   "Verify produce/consume roundtrips against a Pulsar cluster using an HCL scenario file",
		Hooks: harness.Hooks{
			Register:  v.register,
			Validate:  v.validate,
			Execute:   v.execute,
			Terminate: v.terminate,
		},
	}
}

func (v *verifier) register(app *harness.App) error {
	return app.AddRequiredOption(optScenarioFile, "scenarioFile", true,
		"HCL scenario file. Each scenario block runs against a fresh topic derived from -t.")
}

func (v *verifier) validate(app *harness.App) error {
	if app.Topic() == "" {
		return harness.InvalidParam(harness.OptTopic, "Must provide a topic name!")
	}
	if app.NumMsg() == harness.InfiniteMessages {
		return harness.InvalidParam(harness.OptNumMsg, "Roundtrip verification needs a finite message number!")
	}

	path, err := app.Args().FilePath(optScenarioFile)
	if err != nil {
		return err
	}
	scenarios, err := LoadFile(path, app.NumMsg())
	if err != nil {
		return harness.InvalidParamCause(optScenarioFile, err, "Invalid scenario file for param '%s'", optScenarioFile)
	}
	v.scenarios = scenarios
	return nil
}

func (v *verifier) execute(ctx context.Context, app *harness.App) error {
	client, err := pulsarclient.New(app.ConnConfig(), app.Hosted(), v.settings.OperationTimeout())
	if err != nil {
		return harness.RuntimeFailure(err, "Unexpected error when creating Pulsar client")
	}
	v.client = client

	out := app.Stdout()
	fmt.Fprintf(out, "Roundtrip started: %d scenarios, base topic %s\n", len(v.scenarios), app.Topic())

	results := make([]Result, 0, len(v.scenarios))
	for _, s := range v.scenarios {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(out, "START scenario=%s producers=%d consumers=%d subscription=%s expected=%d\n",
			s.Name, s.Producers, s.Consumers, s.SubscriptionType, s.Expected())

		r := runScenario(ctx, client, s, app.Topic(), app.Logger())
		results = append(results, r)

		status := "OK"
		if r.Failed() {
			status = "FAIL"
		}
		fmt.Fprintf(out, "DONE  scenario=%s status=%s unique=%d/%d duration=%s\n",
			s.Name, status, r.Stats.Unique, r.Stats.Expected, r.Duration.Round(time.Millisecond))
	}

	fmt.Fprintln(out, "\nSummary:")
	if failures := WriteSummary(out, results); failures > 0 {
		return harness.RuntimeFailure(nil, "roundtrip finished with %d failed scenario(s)", failures)
	}
	return nil
}

func (v *verifier) terminate(app *harness.App) error {
	if v.client != nil {
		v.client.Close()
		v.client = nil
	}
	return nil
}

// runScenario produces Expected() numbered messages to a fresh topic and
// consumes them until all arrived or the scenario times out.
func runScenario(parent context.Context, client pulsar.Client, s Scenario, baseTopic string, log logrus.FieldLogger) Result {
	start := time.Now()
	runID := uuid.NewString()
	topic := scenarioTopic(baseTopic, s.Name, runID[:8])
	result := Result{Scenario: s.Name, Topic: topic, Stats: Stats{Expected: s.Expected(), Missing: s.Expected()}}

	subType, err := s.subscriptionType()
	if err != nil {
		result.Err = err
		return result
	}
	timeout, err := s.timeout()
	if err != nil {
		result.Err = err
		return result
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log = log.WithFields(logrus.Fields{"scenario": s.Name, "topic": topic})

	var prodErrs, consErrs, valErrs errorSample

	// Consumers subscribe first so that nothing is published before the
	// subscription exists.
	subscription := sanitize("rt-" + s.Name + "-" + runID[:8])
	consumers := make([]pulsar.Consumer, 0, s.Consumers)
	for i := 0; i < s.Consumers; i++ {
		consumer, err := client.Subscribe(pulsar.ConsumerOptions{
			Topic:            topic,
			SubscriptionName: subscription,
			Type:             subType,
		})
		if err != nil {
			// exclusive subscriptions accept a single consumer
			if subType != pulsar.Exclusive || i == 0 {
				consErrs.add(fmt.Sprintf("consumer=%d subscribe: %v", i, err))
			}
			continue
		}
		consumers = append(consumers, consumer)
	}
	defer func() {
		for _, c := range consumers {
			c.Close()
		}
	}()

	producers := make([]pulsar.Producer, 0, s.Producers)
	for i := 0; i < s.Producers; i++ {
		producer, err := client.CreateProducer(pulsar.ProducerOptions{Topic: topic})
		if err != nil {
			prodErrs.add(fmt.Sprintf("producer=%d create: %v", i, err))
			continue
		}
		producers = append(producers, producer)
	}
	defer func() {
		for _, p := range producers {
			p.Close()
		}
	}()

	if len(consumers) == 0 || len(producers) == 0 {
		result.Err = fmt.Errorf("could not create clients (%d producers, %d consumers)", len(producers), len(consumers))
		result.fill(Stats{Expected: s.Expected(), Missing: s.Expected()}, &prodErrs, &consErrs, &valErrs)
		result.Duration = time.Since(start)
		return result
	}

	v := newValidator()
	var fo *failover
	if subType == pulsar.Failover {
		fo = newFailover(len(consumers), s.Expected())
	}

	var wg sync.WaitGroup
	for i, p := range producers {
		wg.Add(1)
		go func(p pulsar.Producer, id string) {
			defer wg.Done()
			for seq := 1; seq <= s.MessageCount; seq++ {
				_, err := p.Send(ctx, &pulsar.ProducerMessage{
					Payload: []byte(fmt.Sprintf("producer=%s seq=%d", id, seq)),
					Properties: map[string]string{
						propRunID:    runID,
						propProducer: id,
						propSeq:      strconv.Itoa(seq),
						propScenario: s.Name,
					},
				})
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					prodErrs.add(fmt.Sprintf("producer=%s send seq=%d: %v", id, seq, err))
				}
			}
		}(p, fmt.Sprintf("producer-%d", i))
	}

	for i, c := range consumers {
		wg.Add(1)
		go func(c pulsar.Consumer, id int) {
			defer wg.Done()
			for {
				msg, err := c.Receive(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					consErrs.add(fmt.Sprintf("consumer=%d receive: %v", id, err))
					if consumerClosed(err) {
						return
					}
					continue
				}
				if ackErr := c.Ack(msg); ackErr != nil {
					consErrs.add(fmt.Sprintf("consumer=%d ack %s: %v", id, msg.ID(), ackErr))
				}

				props := msg.Properties()
				if props[propRunID] != runID {
					continue
				}
				seq, convErr := strconv.Atoi(props[propSeq])
				if props[propProducer] == "" || convErr != nil {
					valErrs.add(fmt.Sprintf("consumer=%d bad properties message_id=%s", id, msg.ID()))
					continue
				}

				if v.record(id, props[propProducer], seq) >= s.Expected() {
					cancel()
					return
				}
				if fo != nil && fo.handOver(id) {
					log.WithField("consumer", id).Info("closing active failover consumer")
					c.Close()
					return
				}
			}
		}(c, i)
	}

	wg.Wait()

	result.fill(v.stats(s.Expected()), &prodErrs, &consErrs, &valErrs)
	result.Duration = time.Since(start)
	if parent.Err() != nil {
		result.Err = parent.Err()
	}
	log.WithFields(logrus.Fields{
		"unique":     result.Stats.Unique,
		"duplicates": result.Stats.Duplicates,
		"outOfOrder": result.Stats.OutOfOrder,
		"missing":    result.Stats.Missing,
	}).Info("scenario finished")
	return result
}

// consumerClosed reports whether err means the consumer can no longer
// receive.
func consumerClosed(err error) bool {
	var perr *pulsar.Error
	return errors.As(err, &perr) && perr.Result() == pulsar.ConsumerClosed
}

func (r *Result) fill(stats Stats, prod, cons, val *errorSample) {
	r.Stats = stats
	r.Stats.ProducerErrors, r.ProducerSample = prod.get()
	r.Stats.ConsumerErrors, r.ConsumerSample = cons.get()
	r.Stats.ValidationErrors, r.ValidationSample = val.get()
}

// failover makes the active consumer of a failover subscription step down
// once it has taken its share, until every standby consumer had a turn.
type failover struct {
	mu      sync.Mutex
	share   int
	standby int
	active  int
	taken   int
}

func newFailover(consumers, expected int) *failover {
	return &failover{
		share:   max(expected/max(consumers, 1), 1),
		standby: max(consumers-1, 0),
		active:  -1,
	}
}

// handOver counts a message for consumer and reports whether it should close
// now so that the broker promotes a standby.
func (f *failover) handOver(consumer int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if consumer != f.active {
		f.active, f.taken = consumer, 0
	}
	f.taken++
	if f.standby == 0 || f.taken < f.share {
		return false
	}
	f.standby--
	f.active = -1
	return true
}
