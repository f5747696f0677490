//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
	"github.com/zacteqye72-art/project-focus-app/internal/entitycache"
	"github.com/zacteqye72-art/project-focus-app/internal/nudge"
	"github.com/zacteqye72-art/project-focus-app/internal/sampler"
	"github.com/zacteqye72-art/project-focus-app/internal/stabilizer"
	"github.com/zacteqye72-art/project-focus-app/internal/usecase"
)

const validNudge = "Your attention score is decreasing, you can try to add one paragraph to thesis_draft"

var _ = Describe("Focus Pipeline", func() {
	var (
		clock    *fakeClock
		capturer *fakeCapturer
		screens  *fakeScreens
		classy   *fakeClassifier
		idle     *fakeIdle
		textGen  *fakeTextGen
		store    *memoryStore

		runner *usecase.SessionRunner
		cancel context.CancelFunc
		done   chan struct{}
		record domain.SessionRecord
		runErr error

		states    chan domain.FocusState
		nudges    chan *domain.NudgeResult
		reminders chan string
	)

	const (
		pollEvery     = time.Second
		reminderEvery = 5 * time.Second
		idleEvery     = 30 * time.Second
	)

	BeforeEach(func() {
		clock = newFakeClock()
		capturer = &fakeCapturer{info: domain.WindowContext{
			AppID: "com.microsoft.VSCode",
			Title: "thesis_draft chapter two",
		}}
		screens = &fakeScreens{}
		classy = &fakeClassifier{}
		idle = &fakeIdle{}
		textGen = &fakeTextGen{response: validNudge}
		store = &memoryStore{}

		states = make(chan domain.FocusState, 16)
		nudges = make(chan *domain.NudgeResult, 16)
		reminders = make(chan string, 16)

		cfg := usecase.SessionConfig{
			Subject:    "write chapter two of the thesis",
			Sampler:    sampler.Config{HeartbeatInterval: 7 * time.Minute},
			Cache:      entitycache.DefaultConfig(),
			Nudge:      nudge.DefaultConfig(),
			Stabilizer: stabilizer.DefaultConfig(),
		}
		deps := usecase.SessionDeps{
			Capturer:   capturer,
			Screens:    screens,
			Redactor:   passRedactor{},
			Classifier: classy,
			Idle:       idle,
			TextGen:    textGen,
			Store:      store,
			Clock:      clock,
			Logger:     zap.NewNop(),
		}
		events := usecase.SessionEvents{
			OnStateChange: func(state domain.FocusState, _ string) { states <- state },
			OnNudge:       func(result *domain.NudgeResult) { nudges <- result },
			OnReminder:    func(message string) { reminders <- message },
		}
		runner = usecase.NewSessionRunner(cfg, deps, events)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan struct{})
		go func() {
			defer GinkgoRecover()
			record, runErr = runner.Run(ctx)
			close(done)
		}()

		// One sampler heartbeat plus three monitor tickers.
		Eventually(clock.tickerCount).Should(Equal(4))
	})

	AfterEach(func() {
		cancel()
		Eventually(done).Should(BeClosed())
	})

	Describe("drifting away from the task", func() {
		It("classifies, transitions, and nudges with on-task entities", func() {
			classy.push(domain.Classification{Label: domain.LabelDistracted, Reason: "video playing"})

			clock.fire(pollEvery)

			Eventually(states).Should(Receive(Equal(domain.StateDistracted)))

			var result *domain.NudgeResult
			Eventually(nudges).Should(Receive(&result))
			Expect(result.Message).To(Equal(validNudge))
			Expect(result.Fallback).To(BeFalse())
			Expect(result.Entities).To(ContainElement("thesis_draft"))
		})

		It("sends reminders built from the last on-task sample while distracted", func() {
			classy.push(domain.Classification{Label: domain.LabelDistracted, Reason: "chat open"})
			clock.fire(pollEvery)
			Eventually(states).Should(Receive(Equal(domain.StateDistracted)))
			Eventually(nudges).Should(Receive())

			clock.fire(reminderEvery)
			Eventually(reminders).Should(Receive(Equal(validNudge)))

			clock.fire(reminderEvery)
			Eventually(reminders).Should(Receive())
		})

		It("throttles to one nudge per session", func() {
			classy.push(
				domain.Classification{Label: domain.LabelDistracted, Reason: "video"},
				domain.Classification{Label: domain.LabelFocused, Reason: "back"},
				domain.Classification{Label: domain.LabelDistracted, Reason: "video again"},
			)

			clock.fire(pollEvery)
			Eventually(states).Should(Receive(Equal(domain.StateDistracted)))
			Eventually(nudges).Should(Receive())

			clock.advance(3 * time.Second)
			capturer.setWindow(domain.WindowContext{AppID: "com.microsoft.VSCode", Title: "thesis_draft chapter two edit"})
			clock.fire(pollEvery)
			Eventually(states).Should(Receive(Equal(domain.StateFocused)))

			clock.advance(3 * time.Second)
			capturer.setWindow(domain.WindowContext{AppID: "com.google.Chrome", Title: "funny videos"})
			clock.fire(pollEvery)
			Eventually(states).Should(Receive(Equal(domain.StateDistracted)))

			Consistently(nudges, 100*time.Millisecond).ShouldNot(Receive())
		})
	})

	Describe("going idle", func() {
		It("enters Idle after a still window with no input and recovers on input", func() {
			// Establish the window, then let it sit still past the threshold.
			classy.push(domain.Classification{Label: domain.LabelFocused, Reason: "editing"})
			clock.fire(pollEvery)
			Eventually(states).Should(Receive(Equal(domain.StateFocused)))

			clock.advance(2 * time.Minute)
			idle.set(45)

			clock.fire(idleEvery)
			Eventually(states).Should(Receive(Equal(domain.StateIdle)))

			idle.set(1)
			clock.fire(pollEvery)
			Eventually(states).Should(Receive(Equal(domain.StateFocused)))
		})
	})

	Describe("ending the session", func() {
		It("persists the record and cleans up screenshots", func() {
			classy.push(domain.Classification{Label: domain.LabelDistracted, Reason: "video"})
			clock.fire(pollEvery)
			Eventually(states).Should(Receive(Equal(domain.StateDistracted)))
			Eventually(nudges).Should(Receive())

			cancel()
			Eventually(done).Should(BeClosed())

			Expect(runErr).NotTo(HaveOccurred())
			Expect(record.ID).NotTo(BeEmpty())
			Expect(record.Subject).To(Equal("write chapter two of the thesis"))
			Expect(record.Nudges).To(Equal(1))

			saved := store.saved()
			Expect(saved).To(HaveLen(1))
			Expect(saved[0].ID).To(Equal(record.ID))
			Expect(screens.cleanupCount()).To(Equal(1))
		})
	})
})
