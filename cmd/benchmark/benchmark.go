package benchmark

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/tflitehelper/internal/classifier"
	"github.com/tphakala/tflitehelper/internal/conf"
	"github.com/tphakala/tflitehelper/internal/cpuspec"
)

type options struct {
	duration time.Duration
	parallel int
}

// Command creates the inference benchmark command.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Run an inference benchmark with the configured model",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.duration <= 0 {
				return fmt.Errorf("duration must be positive, got %v", opts.duration)
			}
			if opts.parallel < 1 || opts.parallel > 64 {
				return fmt.Errorf("parallel must be between 1 and 64, got %d", opts.parallel)
			}
			if opts.parallel > 1 {
				return runParallel(cmd.Context(), settings, opts)
			}
			return runBenchmark(settings, opts.duration)
		},
	}

	cmd.Flags().DurationVar(&opts.duration, "duration", 10*time.Second, "how long each benchmark pass runs")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 1, "number of classifiers running concurrently (1-64)")

	return cmd
}

// benchmarkResults stores benchmark metrics
type benchmarkResults struct {
	totalInferences int           // number of Classify calls
	avgTime         time.Duration // average time per Classify call
	imagesPerSecond float64       // throughput
}

func runBenchmark(settings *conf.Settings, duration time.Duration) error {
	if settings.Classifier.Backend == conf.BackendONNX {
		var results benchmarkResults
		fmt.Println("🚀 Testing onnxruntime inference:")
		if err := runInferenceBenchmark(&settings.Classifier, &results, duration); err != nil {
			return fmt.Errorf("❌ onnxruntime benchmark failed: %w", err)
		}
		printSingle("ONNX", &results)
		return nil
	}

	var xnnpackResults, standardResults benchmarkResults

	// Work on a copy so the delegate toggle does not leak into settings
	classifierSettings := settings.Classifier

	fmt.Println("🚀 Testing with XNNPACK delegate:")
	classifierSettings.UseXNNPACK = true
	if err := runInferenceBenchmark(&classifierSettings, &xnnpackResults, duration); err != nil {
		fmt.Printf("❌ XNNPACK benchmark failed: %v\n", err)
	}

	fmt.Println("\n🐌 Testing standard CPU inference:")
	classifierSettings.UseXNNPACK = false
	if err := runInferenceBenchmark(&classifierSettings, &standardResults, duration); err != nil {
		return fmt.Errorf("❌ standard CPU inference benchmark failed: %w", err)
	}

	fmt.Printf("\nResults:\n")
	fmt.Printf("Method         Inference Time   Throughput\n")
	fmt.Printf("─────────────  ───────────────  ──────────────────────\n")
	printRow("Standard", &standardResults)
	printRow("XNNPACK", &xnnpackResults)
	fmt.Printf("─────────────  ───────────────  ──────────────────────\n")

	// Only show comparison if both tests succeeded
	if xnnpackResults.totalInferences > 0 && standardResults.totalInferences > 0 {
		speedImprovement := (float64(standardResults.avgTime) - float64(xnnpackResults.avgTime)) /
			float64(standardResults.avgTime) * 100
		fmt.Printf("\n🚀 Speed improvement with XNNPACK: %.1f%%\n", speedImprovement)

		rating, description := getPerformanceRating(milliseconds(xnnpackResults.avgTime))
		fmt.Printf("System Rating: %s, %s\n", rating, description)
	}

	return nil
}

func printSingle(method string, results *benchmarkResults) {
	fmt.Printf("\nResults:\n")
	fmt.Printf("Method         Inference Time   Throughput\n")
	fmt.Printf("─────────────  ───────────────  ──────────────────────\n")
	printRow(method, results)
	fmt.Printf("─────────────  ───────────────  ──────────────────────\n")
	rating, description := getPerformanceRating(milliseconds(results.avgTime))
	fmt.Printf("System Rating: %s, %s\n", rating, description)
}

func printRow(method string, results *benchmarkResults) {
	if results.totalInferences == 0 {
		fmt.Printf("%-13s  ❌ Failed\n", method)
		return
	}
	fmt.Printf("%-13s  %8.2f ms      %8.2f images/sec\n",
		method, milliseconds(results.avgTime), results.imagesPerSecond)
}

func runInferenceBenchmark(settings *conf.ClassifierSettings, results *benchmarkResults, duration time.Duration) error {
	c, err := classifier.Open(settings)
	if err != nil {
		return fmt.Errorf("failed to open classifier: %w", err)
	}
	defer func() { _ = c.Close() }()

	img := testImage(c.Config().InputSize)

	fmt.Printf("⏳ Running benchmark for %v...\n", duration)

	startTime := time.Now()
	var totalInferences int
	var totalDuration time.Duration

	for time.Since(startTime) < duration {
		inferenceStart := time.Now()
		if _, err := c.Classify(img); err != nil {
			return fmt.Errorf("classification failed: %w", err)
		}
		totalDuration += time.Since(inferenceStart)
		totalInferences++

		if totalInferences%10 == 0 {
			avgTime := totalDuration / time.Duration(totalInferences)
			fmt.Printf("\r🔄 Inferences: \033[1;36m%d\033[0m, Average time: \033[1;33m%.2fms\033[0m",
				totalInferences, milliseconds(avgTime))
		}
	}
	fmt.Println()

	results.totalInferences = totalInferences
	results.avgTime = average(totalDuration, totalInferences)
	results.imagesPerSecond = float64(totalInferences) / time.Since(startTime).Seconds()

	return nil
}

// runParallel measures the throughput of several classifiers classifying
// concurrently, each with its share of the CPU threads.
func runParallel(ctx context.Context, settings *conf.Settings, opts *options) error {
	classifierSettings := settings.Classifier
	classifierSettings.Threads = cpuspec.GetCPUSpec().ThreadsPerInstance(settings.Classifier.Threads, opts.parallel)

	fmt.Printf("🔬 Parallel benchmark: %d classifiers, %d threads each\n", opts.parallel, classifierSettings.Threads)

	classifiers := make([]*classifier.Classifier, 0, opts.parallel)
	defer func() {
		for _, c := range classifiers {
			_ = c.Close()
		}
	}()
	for range opts.parallel {
		c, err := classifier.Open(&classifierSettings)
		if err != nil {
			return fmt.Errorf("failed to open classifier: %w", err)
		}
		classifiers = append(classifiers, c)
	}

	img := testImage(classifiers[0].Config().InputSize)
	deadline, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	var total atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(deadline)
	for _, c := range classifiers {
		g.Go(func() error {
			for gctx.Err() == nil {
				if _, err := c.Classify(img); err != nil {
					return fmt.Errorf("classification failed: %w", err)
				}
				total.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	n := int(total.Load())
	throughput := float64(n) / elapsed.Seconds()
	fmt.Printf("\nClassified %d images in %v\n", n, elapsed.Round(time.Millisecond))
	fmt.Printf("Throughput: %.2f images/sec\n", throughput)

	if n > 0 {
		perImage := milliseconds(average(elapsed, n)) * float64(opts.parallel)
		rating, description := getPerformanceRating(perImage)
		fmt.Printf("System Rating: %s, %s\n", rating, description)
	}
	return nil
}

// testImage returns a size x size gradient so the model sees non-trivial input.
func testImage(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(size-1, 1)),
				G: uint8(y * 255 / max(size-1, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func getPerformanceRating(inferenceTime float64) (rating, description string) {
	switch {
	case inferenceTime > 1000:
		return "❌ Failed", "System is too slow for interactive classification"
	case inferenceTime > 500:
		return "❌ Very Poor", "System is too slow for reliable operation"
	case inferenceTime > 200:
		return "⚠️ Poor", "System may struggle with interactive classification"
	case inferenceTime > 100:
		return "👍 Decent", "System should handle interactive classification"
	case inferenceTime > 50:
		return "✨ Good", "System will perform well"
	case inferenceTime > 20:
		return "🌟 Very Good", "System will perform very well"
	case inferenceTime > 5:
		return "🏆 Excellent", "System will perform excellently"
	default:
		return "🚀 Superb", "System will perform exceptionally well"
	}
}

func average(total time.Duration, n int) time.Duration {
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
