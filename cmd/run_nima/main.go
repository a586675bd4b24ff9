// Command run_nima scores the perceptual quality of a single image.
//
// Usage:
//
//	run_nima [flags] <image_path>
//
// On success it prints one line to stdout, the mean and standard deviation of
// the predicted 10-bucket quality distribution, both with two decimals and
// comma separated. All diagnostics go to stderr so stdout stays parseable.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vqa-ai/go-nima/images"
	"github.com/vqa-ai/go-nima/inference/providers"
	"github.com/vqa-ai/go-nima/nima"
)

const usageLine = "Usage: run_nima <image_path>"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:            "run_nima",
		Usage:           "score the perceptual quality of an image",
		ArgsUsage:       "<image_path>",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "model",
				Usage: "path to the ONNX model `FILE` (default " + nima.DefaultModelPath + ")",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a YAML config `FILE` (also read from " + nima.EnvConfigPath + ")",
			},
			&cli.StringFlag{
				Name:  "engine",
				Usage: "inference engine, ort or opencv",
			},
			&cli.StringFlag{
				Name:  "input-name",
				Usage: "model input tensor `NAME` (discovered from the model when empty)",
			},
			&cli.StringFlag{
				Name:  "output-name",
				Usage: "model output tensor `NAME` (discovered from the model when empty)",
			},
			&cli.IntFlag{
				Name:  "input-size",
				Usage: "input edge length in `PIXELS` for models with dynamic spatial dims",
			},
			&cli.StringFlag{
				Name:  "layout",
				Usage: "input tensor layout, nchw, nhwc, or auto",
			},
			&cli.BoolFlag{
				Name:  "softmax",
				Usage: "apply softmax to the model output (for exports without the final activation)",
			},
			&cli.StringFlag{
				Name:  "ort-lib",
				Usage: "path to the ONNX Runtime shared library `FILE`",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "execution provider, cpu, coreml, cuda, or openvino",
			},
			&cli.IntFlag{
				Name:  "threads",
				Usage: "intra-op thread count `N` for the ORT session",
			},
			&cli.StringFlag{
				Name:  "decoder",
				Usage: "image decoder, native or vips",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log per-stage timings and runtime diagnostics to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			logrus.SetOutput(os.Stderr)
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if c.Bool("debug") {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
			return nil
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		fmt.Println(usageLine)
		return cli.Exit("", 1)
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		return err
	}

	model, err := nima.NewModel(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := model.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("closing model")
		}
	}()

	summary, err := model.ScoreFile(context.Background(), c.Args().First())
	if err != nil {
		return err
	}

	fmt.Println(summary.String())
	return nil
}

// resolveConfig layers the scoring configuration. Defaults first, then the
// YAML file, then environment variables, then command-line flags. Later
// layers win.
func resolveConfig(c *cli.Context) (nima.Config, error) {
	cfg := nima.DefaultConfig()

	path := c.String("config")
	if path == "" {
		path = os.Getenv(nima.EnvConfigPath)
	}
	if path != "" {
		loaded, err := nima.LoadConfig(path)
		if err != nil {
			return nima.Config{}, err
		}
		cfg = loaded
	}

	cfg.ApplyEnvironment()

	if c.IsSet("model") {
		cfg.Model = c.String("model")
	}
	if c.IsSet("engine") {
		cfg.Engine = nima.EngineKind(c.String("engine"))
	}
	if c.IsSet("input-name") {
		cfg.InputName = c.String("input-name")
	}
	if c.IsSet("output-name") {
		cfg.OutputName = c.String("output-name")
	}
	if c.IsSet("input-size") {
		cfg.InputSize = c.Int("input-size")
	}
	if c.IsSet("layout") {
		cfg.Layout = images.Layout(c.String("layout"))
	}
	if c.IsSet("softmax") {
		cfg.Softmax = c.Bool("softmax")
	}
	if c.IsSet("ort-lib") {
		cfg.ORTLibrary = c.String("ort-lib")
	}
	if c.IsSet("provider") {
		backend, err := providers.ParseBackend(c.String("provider"))
		if err != nil {
			return nima.Config{}, err
		}
		cfg.Provider.Backend = backend
	}
	if c.IsSet("threads") {
		cfg.Tuning.IntraOpNumThreads = c.Int("threads")
	}
	if c.IsSet("decoder") {
		cfg.Decoder = nima.Decoder(c.String("decoder"))
	}
	if c.Bool("debug") {
		cfg.Verbose = true
	}

	return cfg, nil
}
