package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/rocache/datarecording"
	"github.com/sarchlab/rocache/logging"
	"github.com/sarchlab/rocache/mem"
	"github.com/sarchlab/rocache/mem/cache"
	"github.com/sarchlab/rocache/monitoring"
	"github.com/sarchlab/rocache/tracing"
)

type runOptions struct {
	configFile string
	envFile    string
	traceFile  string

	name      string
	blocks    int
	blockSize int
	ways      int
	policy    string

	image     string
	pattern   string
	redisAddr string
	redisKey  string

	record string
	verify bool

	monitor     bool
	port        int
	hold        bool
	openBrowser bool

	logLevel  string
	logPretty bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	defaults := DefaultConfig()

	runCmd := &cobra.Command{
		Use:   "run [addresses...]",
		Short: "Replay loads through a cache.",
		Long: `Replay loads through a cache. Addresses come from the arguments ` +
			`and from the trace file, one per line, in decimal or in ` +
			`hexadecimal with a 0x prefix. Text after # is ignored.`,
		RunE: opts.run,
	}

	f := runCmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "Path to a YAML configuration file")
	f.StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file, ignored if missing")
	f.StringVarP(&opts.traceFile, "trace", "t", "", "Path to a file of addresses to load")

	f.StringVar(&opts.name, "name", defaults.Cache.Name, "Name of the cache")
	f.IntVar(&opts.blocks, "blocks", defaults.Cache.Blocks, "Total number of blocks")
	f.IntVar(&opts.blockSize, "block-size", defaults.Cache.BlockSize, "Bytes per block, a power of two")
	f.IntVar(&opts.ways, "ways", defaults.Cache.Ways, "Number of blocks per set")
	f.StringVar(&opts.policy, "policy", defaults.Cache.Policy, "Replacement policy, age or lru")

	f.StringVar(&opts.image, "image", "", "Binary file loaded at address 0")
	f.StringVar(&opts.pattern, "pattern", "", "Generated memory, only identity is supported")
	f.StringVar(&opts.redisAddr, "redis-addr", "", "Address of a Redis server holding the memory image")
	f.StringVar(&opts.redisKey, "redis-key", defaults.Memory.Redis.Key, "Redis key of the memory image")

	f.StringVar(&opts.record, "record", "", "Record the accesses into <record>.sqlite3")
	f.BoolVar(&opts.verify, "verify", false, "Compare every loaded byte with the memory")

	f.BoolVar(&opts.monitor, "monitor", false, "Serve the monitoring page")
	f.IntVar(&opts.port, "port", 0, "Port of the monitoring server, random if 0")
	f.BoolVar(&opts.hold, "hold", false, "Keep serving the monitor after the replay until interrupted")
	f.BoolVar(&opts.openBrowser, "open-browser", false, "Open the monitoring page in a browser")

	f.StringVar(&opts.logLevel, "log-level", defaults.Log.Level, "Log level, debug, info, warn or error")
	f.BoolVar(&opts.logPretty, "log-pretty", false, "Human-readable logs instead of JSON")

	return runCmd
}

func (o *runOptions) resolveConfig(flags *pflag.FlagSet) (Config, error) {
	if err := LoadEnvFile(o.envFile); err != nil {
		return Config{}, err
	}

	cfg, err := LoadConfig(o.configFile)
	if err != nil {
		return cfg, err
	}

	cfg.ApplyEnv(os.LookupEnv)
	o.applyFlags(flags, &cfg)

	return cfg, cfg.Validate()
}

func (o *runOptions) applyFlags(flags *pflag.FlagSet, cfg *Config) {
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("name", func() { cfg.Cache.Name = o.name })
	set("blocks", func() { cfg.Cache.Blocks = o.blocks })
	set("block-size", func() { cfg.Cache.BlockSize = o.blockSize })
	set("ways", func() { cfg.Cache.Ways = o.ways })
	set("policy", func() { cfg.Cache.Policy = o.policy })
	set("image", func() { cfg.Memory.Image = o.image })
	set("pattern", func() { cfg.Memory.Pattern = o.pattern })
	set("redis-addr", func() { cfg.Memory.Redis.Addr = o.redisAddr })
	set("redis-key", func() { cfg.Memory.Redis.Key = o.redisKey })
	set("record", func() { cfg.Record = o.record })
	set("verify", func() { cfg.Verify = o.verify })
	set("monitor", func() { cfg.Monitor.Enabled = o.monitor })
	set("port", func() { cfg.Monitor.Port = o.port })
	set("hold", func() { cfg.Monitor.Hold = o.hold })
	set("open-browser", func() { cfg.Monitor.OpenBrowser = o.openBrowser })
	set("log-level", func() { cfg.Log.Level = o.logLevel })
	set("log-pretty", func() { cfg.Log.Pretty = o.logPretty })
}

func (o *runOptions) collectAddresses(args []string) ([]uint64, error) {
	addresses, err := parseAddressArgs(args)
	if err != nil {
		return nil, err
	}

	if o.traceFile != "" {
		fromFile, err := readTraceFile(o.traceFile)
		if err != nil {
			return nil, err
		}

		addresses = append(addresses, fromFile...)
	}

	return addresses, nil
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	cfg, err := o.resolveConfig(cmd.Flags())
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})
	logger := logging.NewLogger("rocache")

	addresses, err := o.collectAddresses(args)
	if err != nil {
		return err
	}

	if len(addresses) == 0 && !cfg.Monitor.Hold {
		return fmt.Errorf("no addresses to load")
	}

	ctx := cmd.Context()

	memory, closeMemory, err := buildMemory(ctx, cfg.Memory)
	if err != nil {
		return err
	}
	defer closeMemory()

	counter := tracing.NewAccessCounter()
	builder := cfg.cacheBuilder().
		WithMemory(memory).
		WithHook(counter)

	if logging.ParseLevel(logging.LogLevel(cfg.Log.Level)) <= zerolog.DebugLevel {
		builder = builder.WithHook(
			tracing.NewLogTracer(logging.NewLogger("cache")))
	}

	if cfg.Record != "" {
		recorder, err := newRecorder(cfg.Record)
		if err != nil {
			return err
		}
		defer recorder.Close()

		builder = builder.WithHook(tracing.NewDBTracer(recorder))
	}

	c, err := builder.Build(cfg.Cache.Name)
	if err != nil {
		return err
	}

	logger.Info().
		Str("cache", c.Name()).
		Int("sets", c.NumSets()).
		Int("ways", c.Associativity()).
		Int("block_size", c.BytesPerBlock()).
		Int("accesses", len(addresses)).
		Msg("replaying")

	var monitor *monitoring.Monitor
	if cfg.Monitor.Enabled {
		monitor, err = startMonitor(cfg.Monitor, c, logger)
		if err != nil {
			return err
		}
		defer monitor.StopServer()
	}

	r := &replayer{
		cache:   c,
		memory:  memory,
		counter: counter,
		verify:  cfg.Verify,
		out:     cmd.OutOrStdout(),
	}

	if monitor != nil {
		bar := monitor.CreateProgressBar("replay", uint64(len(addresses)))
		defer monitor.CompleteProgressBar(bar)
		r.progress = bar
	}

	err = r.replay(addresses)
	if err != nil {
		return err
	}

	r.printSummary(cfg.Cache.Name)

	if cfg.Monitor.Hold {
		waitForInterrupt(ctx, cmd.ErrOrStderr())
	}

	if r.mismatches > 0 {
		return fmt.Errorf("%d loaded bytes differ from the memory",
			r.mismatches)
	}

	return nil
}

func buildMemory(
	ctx context.Context,
	cfg MemoryConfig,
) (mem.Memory, func(), error) {
	noop := func() {}

	if cfg.Pattern == PatternIdentity {
		return mem.AddressPattern, noop, nil
	}

	var image []byte
	if cfg.Image != "" {
		data, err := os.ReadFile(cfg.Image)
		if err != nil {
			return nil, noop, err
		}

		image = data
	}

	if cfg.Redis.Addr == "" {
		storage := mem.NewStorage(uint64(len(image)))
		if err := storage.Write(0, image); err != nil {
			return nil, noop, err
		}

		return storage, noop, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	closeClient := func() { client.Close() }

	memory := mem.NewRedisMemory(client, cfg.Redis.Key)
	if image != nil {
		if err := memory.Store(ctx, image); err != nil {
			closeClient()
			return nil, noop, err
		}
	}

	return memory, closeClient, nil
}

func newRecorder(path string) (datarecording.DataRecorder, error) {
	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("recording file %s already exists", filename)
	}

	return datarecording.New(path), nil
}

func startMonitor(
	cfg MonitorConfig,
	c *cache.Cache,
	logger zerolog.Logger,
) (*monitoring.Monitor, error) {
	monitor := monitoring.NewMonitor().WithPortNumber(cfg.Port)
	monitor.RegisterCache(c)

	addr, err := monitor.StartServer()
	if err != nil {
		return nil, err
	}

	if cfg.OpenBrowser {
		if err := monitoring.OpenInBrowser(addr); err != nil {
			logger.Warn().Err(err).Msg("failed to open browser")
		}
	}

	return monitor, nil
}

func waitForInterrupt(ctx context.Context, w io.Writer) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprintln(w, "Monitor is still serving, press Ctrl+C to exit.")
	<-ctx.Done()
}

type replayer struct {
	cache    *cache.Cache
	memory   mem.Memory
	counter  *tracing.AccessCounter
	progress *monitoring.ProgressBar
	verify   bool
	out      io.Writer

	mismatches int
}

func (r *replayer) replay(addresses []uint64) error {
	for _, addr := range addresses {
		record, err := r.cache.Access(addr)
		if err != nil {
			return fmt.Errorf("load 0x%x: %w", addr, err)
		}

		fmt.Fprintf(r.out, "0x%x %s 0x%02x\n",
			addr, hitOrMiss(record.Hit), record.Value)

		if r.verify {
			r.check(addr, record.Value)
		}

		if r.progress != nil {
			r.progress.IncrementFinished(1)
		}
	}

	return nil
}

func (r *replayer) check(addr uint64, value byte) {
	want, err := r.memory.Read(addr, 1)
	if err != nil || len(want) != 1 || want[0] != value {
		r.mismatches++
		fmt.Fprintf(r.out, "0x%x mismatch\n", addr)
	}
}

func (r *replayer) printSummary(name string) {
	printCount(r.out, name, r.counter.Count(name))

	if r.verify {
		fmt.Fprintf(r.out, "%s: %d mismatches\n", name, r.mismatches)
	}
}

func hitOrMiss(hit bool) string {
	if hit {
		return "hit"
	}

	return "miss"
}

func printCount(w io.Writer, name string, count tracing.AccessCount) {
	fmt.Fprintf(w,
		"%s: %d accesses, %d hits, %d misses, %d evictions, "+
			"hit rate %.2f%%\n",
		name, count.Accesses(), count.Hits, count.Misses, count.Evictions,
		count.HitRate()*100)
}
