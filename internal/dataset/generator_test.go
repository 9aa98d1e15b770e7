package dataset_test

import (
	"context"
	"math/rand"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/tanksim/internal/dataset"
	"github.com/san-kum/tanksim/internal/dynamo"
	"github.com/san-kum/tanksim/internal/integrators"
	"github.com/san-kum/tanksim/internal/physics"
	"github.com/san-kum/tanksim/internal/sim"
)

func newSim() *sim.Simulator {
	return sim.New(physics.NewTwoTank, integrators.NewEuler())
}

func seeded(seed int64) *dataset.Generator {
	return dataset.NewGenerator(newSim, rand.New(rand.NewSource(seed)))
}

var _ = Describe("Generator", func() {
	ctx := context.Background()

	Context("with the reference parameters", func() {
		var (
			cfg dataset.Config
			ds  *dataset.Dataset
		)

		BeforeEach(func() {
			cfg = dataset.DefaultConfig()
			cfg.NormalRuns = 3
			cfg.AnomalousRuns = 2

			var err error
			ds, err = seeded(7).Generate(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
		})

		It("produces (normal+anomalous) × run length rows", func() {
			Expect(cfg.RowsPerRun()).To(Equal(500))
			Expect(ds.Features).To(HaveLen(5 * 500))
			Expect(ds.Labels).To(HaveLen(len(ds.Features)))
			Expect(ds.Runs).To(HaveLen(5))
		})

		It("only emits binary labels", func() {
			for _, l := range ds.Labels {
				Expect(l).To(BeElementOf(dataset.LabelNormal, dataset.LabelAnomalous))
			}
		})

		It("places normal runs before anomalous runs", func() {
			for i, r := range ds.Runs {
				Expect(r.Anomalous).To(Equal(i >= 3))
				Expect(r.Offset).To(Equal(i * 500))
				Expect(r.Len).To(Equal(500))
			}
		})

		It("labels every normal-run row 0", func() {
			for _, r := range ds.Runs[:3] {
				for i := r.Offset; i < r.Offset+r.Len; i++ {
					Expect(ds.Labels[i]).To(Equal(dataset.LabelNormal))
				}
			}
		})

		It("labels anomalous rows by onset time", func() {
			for _, r := range ds.Runs[3:] {
				for i := r.Offset; i < r.Offset+r.Len; i++ {
					if ds.Features[i].Time < 25 {
						Expect(ds.Labels[i]).To(Equal(dataset.LabelNormal))
					} else {
						Expect(ds.Labels[i]).To(Equal(dataset.LabelAnomalous))
					}
				}
			}
			normal, anomalous := ds.Counts()
			Expect(anomalous).To(Equal(2 * 250))
			Expect(normal).To(Equal(3*500 + 2*250))
		})

		It("starts every run at its drawn initial state in [0.5, 1.5)", func() {
			for _, r := range ds.Runs {
				first := ds.Features[r.Offset]
				Expect(first.Time).To(BeZero())
				Expect(first.H1).To(Equal(r.Initial[0]))
				Expect(first.H2).To(Equal(r.Initial[1]))
				for _, h := range r.Initial {
					Expect(h).To(BeNumerically(">=", 0.5))
					Expect(h).To(BeNumerically("<", 1.5))
				}
			}
		})

		It("keeps labels in agreement with the simulated mode", func() {
			s := newSim()
			for _, r := range ds.Runs {
				rc := sim.Config{Dt: cfg.Dt, Duration: cfg.Duration}
				if r.Anomalous {
					rc = rc.WithAnomaly(cfg.AnomalyOnset)
				}
				traj, err := s.Run(ctx, dynamo.State{r.Initial[0], r.Initial[1]}, rc)
				Expect(err).NotTo(HaveOccurred())
				Expect(traj.Len()).To(Equal(r.Len))

				for j, sample := range traj.Samples {
					row := ds.Features[r.Offset+j]
					Expect(row.Time).To(Equal(sample.Time))
					Expect(row.H1).To(Equal(sample.State[0]))
					Expect(row.H2).To(Equal(sample.State[1]))

					stuck := sample.Mode == physics.ModeValveStuck
					Expect(ds.Labels[r.Offset+j] == dataset.LabelAnomalous).To(Equal(stuck))
				}
			}
		})
	})

	Context("reproducibility", func() {
		cfg := dataset.DefaultConfig()
		cfg.NormalRuns = 4
		cfg.AnomalousRuns = 4
		cfg.Duration = 10
		cfg.AnomalyOnset = 5

		It("is bit-identical for the same seed", func() {
			a, err := seeded(42).Generate(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			b, err := seeded(42).Generate(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(a.Features).To(Equal(b.Features))
			Expect(a.Labels).To(Equal(b.Labels))
		})

		It("differs for a different seed", func() {
			a, err := seeded(1).Generate(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			b, err := seeded(2).Generate(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(a.Features).NotTo(Equal(b.Features))
			Expect(a.Labels).To(Equal(b.Labels))
		})

		It("does not depend on the worker count", func() {
			serial, err := seeded(42).Generate(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())

			for _, workers := range []int{2, 3, 8, 0} {
				g := seeded(42)
				g.SetWorkers(workers)
				parallel, err := g.Generate(ctx, cfg)
				Expect(err).NotTo(HaveOccurred())
				Expect(parallel.Features).To(Equal(serial.Features))
				Expect(parallel.Labels).To(Equal(serial.Labels))
			}
		})
	})

	Context("degenerate and invalid requests", func() {
		It("returns an empty dataset for zero runs", func() {
			ds, err := seeded(1).Generate(ctx, dataset.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(ds.Len()).To(BeZero())
			Expect(ds.Labels).To(BeEmpty())
			Expect(ds.Matrix()).To(BeNil())
		})

		DescribeTable("rejects bad configuration",
			func(mutate func(*dataset.Config), want error) {
				cfg := dataset.DefaultConfig()
				cfg.NormalRuns = 1
				mutate(&cfg)
				ds, err := seeded(1).Generate(ctx, cfg)
				Expect(err).To(HaveOccurred())
				if want != nil {
					Expect(err).To(MatchError(want))
				}
				Expect(ds).To(BeNil())
			},
			Entry("negative normal runs", func(c *dataset.Config) { c.NormalRuns = -1 }, dataset.ErrNegativeRuns),
			Entry("negative anomalous runs", func(c *dataset.Config) { c.AnomalousRuns = -3 }, dataset.ErrNegativeRuns),
			Entry("zero dt", func(c *dataset.Config) { c.Dt = 0 }, nil),
			Entry("negative duration", func(c *dataset.Config) { c.Duration = -1 }, nil),
			Entry("inverted init range", func(c *dataset.Config) { c.InitMin, c.InitMax = 2, 1 }, nil),
		)

		It("does not consume randomness for rejected requests", func() {
			rng := rand.New(rand.NewSource(5))
			g := dataset.NewGenerator(newSim, rng)
			cfg := dataset.DefaultConfig()
			cfg.NormalRuns = -1
			_, err := g.Generate(ctx, cfg)
			Expect(err).To(HaveOccurred())
			Expect(rng.Float64()).To(Equal(rand.New(rand.NewSource(5)).Float64()))
		})

		It("propagates run errors without a partial dataset", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			cfg := dataset.DefaultConfig()
			cfg.AnomalousRuns = 2
			ds, err := seeded(1).Generate(canceled, cfg)
			Expect(err).To(MatchError(context.Canceled))
			Expect(ds).To(BeNil())
		})
	})

	Context("progress reporting", func() {
		It("reports every completed run", func() {
			cfg := dataset.DefaultConfig()
			cfg.NormalRuns = 3
			cfg.AnomalousRuns = 3
			cfg.Duration = 2

			var calls, wrongTotal, sawLast atomic.Int64
			g := seeded(3)
			g.SetWorkers(3)
			g.OnProgress(func(done, total int) {
				calls.Add(1)
				if total != 6 {
					wrongTotal.Add(1)
				}
				if done == total {
					sawLast.Add(1)
				}
			})

			_, err := g.Generate(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(calls.Load()).To(Equal(int64(6)))
			Expect(wrongTotal.Load()).To(BeZero())
			Expect(sawLast.Load()).To(Equal(int64(1)))
		})
	})
})

var _ = DescribeTable("dataset.Label",
	func(t float64, anomalous bool, want int) {
		Expect(dataset.Label(t, anomalous, 25)).To(Equal(want))
	},
	Entry("normal run after onset", 30.0, false, dataset.LabelNormal),
	Entry("anomalous run before onset", 24.9, true, dataset.LabelNormal),
	Entry("anomalous run at onset", 25.0, true, dataset.LabelAnomalous),
)
