package executor_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/okian/klynaa/internal/domain/apierror"
	"github.com/okian/klynaa/internal/domain/executor"
	. "github.com/smartystreets/goconvey/convey"
)

type acceptVars struct {
	PickupID string
}

func TestMutationMutate(t *testing.T) {
	Convey("Given a mutation executor", t, func() {
		scope := executor.NewScope(context.Background())
		defer scope.Close()
		ctx := context.Background()

		var calls atomic.Int32
		var lastErr *apierror.Error
		m := executor.NewMutation(scope,
			func(_ context.Context, v acceptVars) (record, error) {
				calls.Add(1)
				if v.PickupID == "missing" {
					return record{}, statusErr{msg: "Not found", status: 404}
				}
				return record{ID: len(v.PickupID)}, nil
			},
			executor.WithOnError[record](func(e *apierror.Error) { lastErr = e }),
			executor.WithImmediate[record](true),
			executor.WithInitialData(record{ID: 42}),
		)

		Convey("It never runs on its own and ignores initial data", func() {
			ctx, cancel := waitCtx()
			defer cancel()
			So(m.Wait(ctx), ShouldBeNil)
			So(calls.Load(), ShouldEqual, 0)
			_, ok := m.Data()
			So(ok, ShouldBeFalse)
			So(m.Phase(), ShouldEqual, executor.PhaseIdle)
		})

		Convey("When the first call fails with 404", func() {
			_, err := m.Mutate(ctx, acceptVars{PickupID: "missing"})

			Convey("Then the error carries the status and data stays absent", func() {
				So(apierror.StatusOf(err), ShouldEqual, 404)
				st := m.State()
				So(st.Data, ShouldBeNil)
				So(st.Err.Message, ShouldEqual, "Not found")
				So(st.Err.Status, ShouldEqual, 404)
				So(st.Phase, ShouldEqual, executor.PhaseError)
				So(lastErr, ShouldNotBeNil)
				So(lastErr.Status, ShouldEqual, 404)
			})

			Convey("And reset clears everything", func() {
				m.Reset()
				m.Reset()
				So(m.State(), ShouldResemble, executor.State[record]{Phase: executor.PhaseIdle})
			})
		})

		Convey("When a call succeeds", func() {
			v, err := m.Mutate(ctx, acceptVars{PickupID: "pk-1"})

			Convey("Then the data is stored and returned", func() {
				So(err, ShouldBeNil)
				So(v.ID, ShouldEqual, 4)
				data, ok := m.Data()
				So(ok, ShouldBeTrue)
				So(data.ID, ShouldEqual, 4)
				So(m.Phase(), ShouldEqual, executor.PhaseSuccess)
			})

			Convey("And reset drops the data", func() {
				m.Reset()
				_, ok := m.Data()
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the function is swapped", func() {
			m.SetFunc(func(context.Context, acceptVars) (record, error) {
				return record{ID: -1}, nil
			})
			v, err := m.Mutate(ctx, acceptVars{PickupID: "pk-1"})

			Convey("Then the new function runs", func() {
				So(err, ShouldBeNil)
				So(v.ID, ShouldEqual, -1)
				So(calls.Load(), ShouldEqual, 0)
			})
		})
	})
}

func TestMutationLastSettledWins(t *testing.T) {
	Convey("Given two overlapping mutations", t, func() {
		scope := executor.NewScope(context.Background())
		defer scope.Close()

		gates := map[int]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
		started := make(chan struct{}, 2)
		m := executor.NewMutation(scope,
			func(_ context.Context, n int) (record, error) {
				started <- struct{}{}
				<-gates[n]
				return record{ID: n}, nil
			},
		)

		results := make(chan record, 2)
		for _, n := range []int{1, 2} {
			go func(n int) {
				v, _ := m.Mutate(context.Background(), n)
				results <- v
			}(n)
		}
		<-started
		<-started

		Convey("When the second settles before the first", func() {
			close(gates[2])
			So((<-results).ID, ShouldEqual, 2)
			So(m.Loading(), ShouldBeTrue)
			close(gates[1])
			So((<-results).ID, ShouldEqual, 1)

			Convey("Then the first, settling last, decides the data", func() {
				data, _ := m.Data()
				So(data.ID, ShouldEqual, 1)
				So(m.Loading(), ShouldBeFalse)
				So(m.Phase(), ShouldEqual, executor.PhaseSuccess)
			})
		})
	})
}

func TestMutationClosedScope(t *testing.T) {
	Convey("Given a mutation on a closed scope", t, func() {
		scope := executor.NewScope(context.Background())
		var calls atomic.Int32
		m := executor.NewMutation(scope, func(context.Context, string) (string, error) {
			calls.Add(1)
			return "ok", nil
		})
		scope.Close()

		Convey("When it is called", func() {
			_, err := m.Mutate(context.Background(), "x")

			Convey("Then it is rejected without running", func() {
				So(errors.Is(err, executor.ErrScopeClosed), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 0)
				So(m.Phase(), ShouldEqual, executor.PhaseIdle)
			})
		})

		Convey("When it has no function", func() {
			n := executor.NewMutation[string, string](executor.NewScope(context.Background()), nil)
			_, err := n.Mutate(context.Background(), "x")
			So(errors.Is(err, executor.ErrNoProducer), ShouldBeTrue)
		})
	})
}

func TestPhase(t *testing.T) {
	Convey("Given the phases", t, func() {
		Convey("They render as lower-case names", func() {
			So(executor.PhaseIdle.String(), ShouldEqual, "idle")
			So(executor.PhaseLoading.String(), ShouldEqual, "loading")
			So(executor.PhaseSuccess.String(), ShouldEqual, "success")
			So(executor.PhaseError.String(), ShouldEqual, "error")
			So(executor.Phase(9).String(), ShouldEqual, "phase(9)")
		})

		Convey("Only success and error are settled", func() {
			So(executor.PhaseIdle.Settled(), ShouldBeFalse)
			So(executor.PhaseLoading.Settled(), ShouldBeFalse)
			So(executor.PhaseSuccess.Settled(), ShouldBeTrue)
			So(executor.PhaseError.Settled(), ShouldBeTrue)
		})

		Convey("They parse back from text", func() {
			var p executor.Phase
			So(p.UnmarshalText([]byte("error")), ShouldBeNil)
			So(p, ShouldEqual, executor.PhaseError)
			So(p.UnmarshalText([]byte("done")), ShouldNotBeNil)
		})

		Convey("State encodes to JSON with named phase", func() {
			d := record{ID: 3}
			st := executor.State[record]{
				Data:  &d,
				Err:   apierror.New(404, "Not found"),
				Phase: executor.PhaseError,
			}
			b, err := json.Marshal(st)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual,
				`{"data":{"id":3},"loading":false,"error":{"message":"Not found","status":404},"phase":"error"}`)
		})
	})
}
