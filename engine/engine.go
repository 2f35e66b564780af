package engine

import (
	iface "FashionDetKit/interface"
	"FashionDetKit/logger"
	"FashionDetKit/monitor"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultBinary = "yolo"

var (
	ErrNoMetrics  = errors.New("validation summary not found in framework output")
	ErrNoArtifact = errors.New("export artifact not found in framework output")

	// "                   all        548      38759      0.611      0.472      0.513      0.324"
	summaryRow = regexp.MustCompile(`^\s*all\s+\d+\s+\d+\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s*$`)
	savedAs    = regexp.MustCompile(`saved as '([^']+)'`)
	imageLine  = regexp.MustCompile(`^image \d+/(\d+) `)
	ansi       = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
)

// CLI drives the Ultralytics command line. Each call runs one process and
// streams its output into the logger.
type CLI struct {
	Binary string
	Dir    string
	Env    []string
}

var _ iface.Backend = (*CLI)(nil)

func NewCLI(binary string) *CLI {
	if binary == "" {
		binary = DefaultBinary
	}
	return &CLI{Binary: binary}
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// kv renders framework arguments as key=value in the given order.
type kv [][2]string

func (a *kv) add(k, v string) {
	*a = append(*a, [2]string{k, v})
}

func (a kv) args() []string {
	out := make([]string, 0, len(a))
	for _, p := range a {
		out = append(out, p[0]+"="+p[1])
	}
	return out
}

func TrainArgs(p iface.TrainParams) []string {
	var a kv
	a.add("data", p.Data)
	a.add("model", p.Pretrained)
	a.add("epochs", strconv.Itoa(p.Epochs))
	a.add("imgsz", strconv.Itoa(p.ImgSize))
	a.add("batch", strconv.Itoa(p.Batch))
	if p.Device != "" {
		a.add("device", p.Device)
	}
	a.add("patience", strconv.Itoa(p.Patience))
	a.add("save", "True")
	a.add("save_period", strconv.Itoa(p.SavePeriod))
	a.add("hsv_h", num(p.Augment.HsvH))
	a.add("hsv_s", num(p.Augment.HsvS))
	a.add("hsv_v", num(p.Augment.HsvV))
	a.add("degrees", num(p.Augment.Degrees))
	a.add("translate", num(p.Augment.Translate))
	a.add("scale", num(p.Augment.Scale))
	a.add("flipud", num(p.Augment.FlipUD))
	a.add("fliplr", num(p.Augment.FlipLR))
	a.add("mosaic", num(p.Augment.Mosaic))
	a.add("mixup", num(p.Augment.Mixup))
	a.add("optimizer", p.Optimizer.Name)
	a.add("lr0", num(p.Optimizer.LR0))
	a.add("lrf", num(p.Optimizer.LRF))
	a.add("momentum", num(p.Optimizer.Momentum))
	a.add("weight_decay", num(p.Optimizer.WeightDecay))
	a.add("warmup_epochs", num(p.Optimizer.WarmupEpochs))
	a.add("amp", pyBool(p.AMP))
	a.add("project", p.Project)
	a.add("name", p.Name)
	a.add("exist_ok", "True")
	a.add("val", "True")
	a.add("plots", "True")
	return append([]string{"detect", "train"}, a.args()...)
}

func ValArgs(p iface.ValParams) []string {
	var a kv
	a.add("model", p.Model)
	a.add("data", p.Data)
	return append([]string{"detect", "val"}, a.args()...)
}

func PredictArgs(p iface.PredictParams) []string {
	var a kv
	a.add("model", p.Model)
	a.add("source", p.Source)
	a.add("save", "True")
	a.add("conf", num(p.Conf))
	a.add("max_det", strconv.Itoa(p.MaxDet))
	a.add("project", p.Project)
	a.add("name", p.Name)
	return append([]string{"detect", "predict"}, a.args()...)
}

func ExportArgs(p iface.ExportParams) []string {
	var a kv
	a.add("model", p.Model)
	a.add("format", p.Format)
	a.add("imgsz", strconv.Itoa(p.ImgSize))
	if p.NMS {
		a.add("nms", "True")
	}
	a.add("half", pyBool(p.Half))
	a.add("int8", pyBool(p.Int8))
	if p.Data != "" {
		a.add("data", p.Data)
	}
	return append([]string{"export"}, a.args()...)
}

// splitLines treats carriage returns as line ends so progress bars come
// through one update at a time.
func splitLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// run executes the framework and hands every non-empty output line to
// onLine. stdout and stderr are merged.
func (c *CLI) run(ctx context.Context, command string, args []string, onLine func(string)) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		monitor.FrameworkRuns.WithLabelValues(command, outcome).Inc()
	}()
	log := logger.Log().With(zap.String("command", command))
	log.Info("starting framework", zap.String("binary", c.Binary), zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = 2 * time.Second
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.Binary, err)
	}
	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		waitErr <- err
	}()

	sc := bufio.NewScanner(pr)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(splitLines)
	for sc.Scan() {
		line := strings.TrimRight(ansi.ReplaceAllString(sc.Text(), ""), " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		log.Debug("[yolo] " + line)
		if onLine != nil {
			onLine(line)
		}
	}
	if err := sc.Err(); err != nil {
		_, _ = io.Copy(io.Discard, pr)
		<-waitErr
		return fmt.Errorf("read %s output: %w", c.Binary, err)
	}
	if err := <-waitErr; err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s %s: %w", c.Binary, command, err)
	}
	return nil
}

func (c *CLI) Train(ctx context.Context, p iface.TrainParams) (iface.TrainResult, error) {
	res := iface.TrainResult{RunDir: filepath.Join(p.Project, p.Name)}
	if err := c.run(ctx, "train", TrainArgs(p), nil); err != nil {
		return res, err
	}
	res.BestPath = filepath.Join(res.RunDir, "weights", "best.pt")
	res.LastPath = filepath.Join(res.RunDir, "weights", "last.pt")
	if c.Dir != "" && !filepath.IsAbs(res.BestPath) {
		res.BestPath = filepath.Join(c.Dir, res.BestPath)
		res.LastPath = filepath.Join(c.Dir, res.LastPath)
	}
	if _, err := os.Stat(res.BestPath); err != nil {
		return res, fmt.Errorf("training finished without weights: %w", err)
	}
	return res, nil
}

// ParseSummary extracts the metrics from the "all" row of a validation table.
func ParseSummary(line string) (iface.Metrics, bool) {
	m := summaryRow.FindStringSubmatch(line)
	if m == nil {
		return iface.Metrics{}, false
	}
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return iface.Metrics{}, false
		}
		v[i] = f
	}
	return iface.Metrics{Precision: v[0], Recall: v[1], MAP50: v[2], MAP50_95: v[3]}, true
}

func (c *CLI) Validate(ctx context.Context, p iface.ValParams) (iface.Metrics, error) {
	var metrics iface.Metrics
	found := false
	err := c.run(ctx, "val", ValArgs(p), func(line string) {
		if m, ok := ParseSummary(line); ok {
			metrics, found = m, true
		}
	})
	if err != nil {
		return metrics, err
	}
	if !found {
		return metrics, ErrNoMetrics
	}
	return metrics, nil
}

func (c *CLI) Predict(ctx context.Context, p iface.PredictParams) (int, error) {
	count := 0
	err := c.run(ctx, "predict", PredictArgs(p), func(line string) {
		if m := imageLine.FindStringSubmatch(line); m != nil {
			count, _ = strconv.Atoi(m[1])
		}
	})
	return count, err
}

func (c *CLI) Export(ctx context.Context, p iface.ExportParams) (string, error) {
	var artifact string
	err := c.run(ctx, "export", ExportArgs(p), func(line string) {
		if m := savedAs.FindStringSubmatch(line); m != nil {
			artifact = m[1]
		}
	})
	if err != nil {
		return "", err
	}
	if artifact == "" {
		return "", fmt.Errorf("%s: %w", p.Format, ErrNoArtifact)
	}
	if c.Dir != "" && !filepath.IsAbs(artifact) {
		artifact = filepath.Join(c.Dir, artifact)
	}
	return artifact, nil
}
