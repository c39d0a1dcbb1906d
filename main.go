package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/leeineian/tempo/home"
	_ "github.com/leeineian/tempo/proc"
	"github.com/leeineian/tempo/sys"
)

const pidFile = ".bot.pid"

func main() {
	// LogFatal panics so that defers run
	defer func() {
		if r := recover(); r != nil {
			if msg, ok := r.(string); ok {
				fmt.Fprintf(os.Stderr, "\n[FATAL] %s\n", msg)
				os.Exit(1)
			}
			panic(r)
		}
	}()

	silent := flag.Bool("silent", false, "Disable all log output")
	skipReg := flag.Bool("skip-reg", false, "Skip command registration")
	flag.Parse()

	cfg, err := sys.LoadConfig()
	if err != nil {
		sys.InitLogger(*silent, false)
		sys.LogFatal(sys.MsgConfigFailedToLoad, err)
	}
	if *silent {
		cfg.Silent = true
	}
	sys.GlobalConfig = cfg

	sys.InitLogger(cfg.Silent, cfg.LogToFile)
	sys.LogInfo(sys.MsgBotStarting, sys.GetProjectName())

	unlock := acquireInstanceLock()
	defer unlock()

	if err := sys.InitDatabase(context.Background(), cfg.DatabasePath); err != nil {
		sys.LogFatal("Failed to initialize database: %v", err)
	}
	defer sys.CloseDatabase()

	if err := run(cfg, *skipReg); err != nil {
		sys.LogFatal(sys.MsgGenericError, err)
	}
}

func run(cfg *sys.Config, skipReg bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sys.SetAppContext(ctx)

	client, err := sys.CreateClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create Discord client: %w", err)
	}

	if !skipReg {
		if err := sys.RegisterCommands(client, cfg.GuildID); err != nil {
			sys.LogError(sys.MsgBotRegisterFail, err)
		}
	} else {
		sys.LogInfo("Skipping command registration as requested.")
	}

	if err := client.OpenGateway(ctx); err != nil {
		client.Close(context.Background())
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	<-ctx.Done()
	if !cfg.Silent {
		fmt.Println()
	}

	name := sys.GetProjectName()
	if self, ok := client.Caches.SelfUser(); ok {
		name = self.Username
	}
	sys.LogInfo(sys.MsgBotShutdown, name)

	// Players leave voice before the gateway goes away.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sys.ShutdownDaemons(shutdownCtx)
	client.Close(shutdownCtx)
	return nil
}

// acquireInstanceLock takes an exclusive lock on the PID file, terminating a
// running instance that holds it.
func acquireInstanceLock() func() {
	f, err := os.OpenFile(pidFile, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		sys.LogFatal("Failed to open PID file: %v", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			break
		}
		if err != syscall.EWOULDBLOCK {
			sys.LogFatal("Failed to lock PID file: %v", err)
		}

		var oldPid int
		_, _ = f.Seek(0, 0)
		if _, scanErr := fmt.Fscanf(f, "%d", &oldPid); scanErr != nil || oldPid == os.Getpid() {
			<-ticker.C
			continue
		}

		process, procErr := os.FindProcess(oldPid)
		if procErr != nil {
			<-ticker.C
			continue
		}

		sys.LogInfo(sys.MsgBotKillingOld, oldPid)
		if err := process.Signal(syscall.SIGTERM); err != nil {
			sys.LogWarn(sys.MsgBotKillFail, err)
		}
		waitForExit(process, ticker, 20*time.Second)
		sys.LogInfo(sys.MsgBotOldTerminated)
	}

	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	if _, err := fmt.Fprintf(f, "%d", os.Getpid()); err != nil {
		sys.LogWarn(sys.MsgBotPIDWriteFail, err)
	}
	_ = f.Sync()

	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		_ = os.Remove(pidFile)
	}
}

// waitForExit polls until the process is gone, escalating to SIGKILL after
// timeout. The old instance needs time to leave voice channels.
func waitForExit(process *os.Process, ticker *time.Ticker, timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		select {
		case <-ticker.C:
			if err := process.Signal(syscall.Signal(0)); err != nil {
				return
			}
		case <-deadline:
			sys.LogWarn("Old process %d is stubborn. Sending SIGKILL...", process.Pid)
			_ = process.Signal(syscall.SIGKILL)
			return
		}
	}
}
