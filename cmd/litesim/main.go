// Command litesim drives a simulated or connected Lite 6 arm, either headless
// through a named script or behind the control server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.viam.com/rdk/logging"

	"litesim"
	"litesim/scripts"
	"litesim/server"
	"litesim/xarm"
)

// logFlushInterval is how often headless runs print the log queue.
const logFlushInterval = 100 * time.Millisecond

type options struct {
	configPath string
	connect    string
	script     string
	loop       bool
	listen     string
	scan       bool
	subnet     string
	debug      bool
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintf(os.Stderr, "litesim: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to a JSON or YAML config file")
	flag.StringVar(&opts.connect, "connect", "", "Arm address to connect to (overrides LITESIM_ROBOT_IP)")
	flag.StringVar(&opts.script, "script", "", "Script to run: "+strings.Join(scripts.Names(), ", "))
	flag.BoolVar(&opts.loop, "loop", false, "Repeat the script until interrupted")
	flag.StringVar(&opts.listen, "listen", "", "Serve the control API on this address, e.g. :8080")
	flag.BoolVar(&opts.scan, "scan", false, "Scan the local subnet for arms and exit")
	flag.StringVar(&opts.subnet, "subnet", "", "Subnet to scan, e.g. 192.168.1 (default: inferred)")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if opts.connect == "" {
		opts.connect = os.Getenv("LITESIM_ROBOT_IP")
	}
	return opts
}

func realMain() error {
	opts := parseFlags()

	logger := logging.NewLogger("litesim")
	if opts.debug {
		logger = logging.NewDebugLogger("litesim")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.scan {
		return scan(ctx, opts.subnet, logger)
	}

	cfg, err := litesim.LoadConfig(opts.configPath, logger)
	if err != nil {
		return err
	}
	if opts.connect != "" {
		cfg.Address = opts.connect
		cfg.Driver = "xarm"
	}

	var driver litesim.Driver
	if cfg.Driver == "xarm" {
		driver = xarm.NewDriver(cfg.DialTimeout, opts.debug, logger.Sublogger("xarm"))
	}

	var kin litesim.Kinematics
	if engine, err := litesim.NewLite6Engine(); err != nil {
		logger.Warnf("Kinematics unavailable: %v", err)
	} else {
		kin = litesim.NewSolver(engine, cfg)
	}

	arm, err := litesim.NewController(cfg, kin, driver, nil, logger.Sublogger("controller"))
	if err != nil {
		return err
	}
	defer func() {
		if err := arm.Close(context.Background()); err != nil {
			logger.Warnf("Close failed: %v", err)
		}
	}()
	arm.SetFaultHandler(func(alert litesim.FaultAlert) {
		logger.Warnf("Fault reported by arm: %s", alert)
	})

	if opts.connect != "" {
		if err := arm.Connect(ctx, cfg.Address); err != nil {
			logger.Warnf("Staying in simulation: %v", err)
		}
	}

	runner := scripts.NewRunner(arm, nil, logger.Sublogger("runner"))

	if opts.listen != "" {
		return serve(ctx, arm, runner, opts, logger)
	}
	if opts.script == "" {
		flag.Usage()
		return errors.New("nothing to do: pass -script or -listen")
	}
	return runHeadless(ctx, arm, runner, opts)
}

func serve(ctx context.Context, arm *litesim.Controller, runner *scripts.Runner, opts options, logger logging.Logger) error {
	if !opts.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(arm, runner, logger.Sublogger("server"))

	if opts.script != "" {
		if _, err := runner.Start(opts.script, scripts.RunOptions{Loop: opts.loop}); err != nil {
			return err
		}
	}
	defer func() {
		if runner.Status().Running {
			_ = runner.Stop(context.Background())
		}
		runner.Wait()
	}()
	return srv.ListenAndServe(ctx, opts.listen)
}

func runHeadless(ctx context.Context, arm *litesim.Controller, runner *scripts.Runner, opts options) error {
	cc := arm.Context()
	done := make(chan struct{})
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		ticker := time.NewTicker(logFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				printLogs(cc)
				return
			case <-ticker.C:
				printLogs(cc)
			}
		}
	}()

	err := runner.Run(ctx, opts.script, scripts.RunOptions{Loop: opts.loop, DisconnectOnFinish: true})
	close(done)
	<-printed
	return err
}

func printLogs(cc *litesim.ControlContext) {
	for _, line := range cc.DrainLogs() {
		fmt.Println(line)
	}
}

func scan(ctx context.Context, subnet string, logger logging.Logger) error {
	if subnet == "" {
		subnet = xarm.LocalSubnet()
	}
	fmt.Printf("Scanning %s on port %d...\n", subnet, xarm.ReportPort)

	hosts, err := xarm.Scan(ctx, subnet, xarm.ReportPort, logger.Sublogger("scan"))
	for _, host := range hosts {
		fmt.Println(host)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if len(hosts) == 0 {
		fmt.Println("No arms found.")
	}
	return nil
}
