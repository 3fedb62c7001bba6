package service

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/kardianos/service"
	"github.com/rs/zerolog"
)

const ServiceName = "usbkill"

// ServiceManager installs and controls usbkill as an OS service.
type ServiceManager struct {
	service service.Service
	program *program
}

// program adapts a Daemon to service.Interface. Start must not block, so
// the daemon runs on its own goroutine until Stop cancels it.
type program struct {
	daemon *Daemon
	log    zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func (p *program) Start(service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.daemon == nil {
		return fmt.Errorf("no daemon configured")
	}
	if p.cancel != nil {
		return fmt.Errorf("daemon already running")
	}

	p.log.Info().Msg("starting usbkill service")
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.daemon.Run(ctx)
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return nil
	}
	p.log.Info().Msg("stopping usbkill service")
	p.cancel()
	<-p.done
	p.cancel = nil
	return nil
}

// NewServiceManager builds the service definition. daemon may be nil for
// install, uninstall and status, which never run the loop.
func NewServiceManager(daemon *Daemon, configPath string, log zerolog.Logger) (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"service", "run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	svcConfig := &service.Config{
		Name:        ServiceName,
		DisplayName: "USB Auto-Kill Switch",
		Description: "Ejects newly attached removable drives whose serial number is not whitelisted",
		Executable:  execPath,
		Arguments:   args,
		Option: service.KeyValue{
			"RunAtLoad": true,
			"KeepAlive": true,
			"Restart":   "always",
		},
	}

	prg := &program{daemon: daemon, log: log}
	svc, err := service.New(prg, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &ServiceManager{service: svc, program: prg}, nil
}

func (sm *ServiceManager) Install() error {
	return sm.service.Install()
}

func (sm *ServiceManager) Uninstall() error {
	return sm.service.Uninstall()
}

func (sm *ServiceManager) Start() error {
	return sm.service.Start()
}

func (sm *ServiceManager) Stop() error {
	return sm.service.Stop()
}

func (sm *ServiceManager) Status() (string, error) {
	status, err := sm.service.Status()
	if err != nil {
		return "Unknown", err
	}

	switch status {
	case service.StatusRunning:
		return "Running", nil
	case service.StatusStopped:
		return "Stopped", nil
	case service.StatusUnknown:
		return "Unknown", nil
	default:
		return fmt.Sprintf("Status(%d)", int(status)), nil
	}
}

// Run blocks until the service manager, or an interrupt when run
// interactively, stops the program.
func (sm *ServiceManager) Run() error {
	return sm.service.Run()
}

// ServiceConfigPath returns where the service definition is installed.
func ServiceConfigPath() string {
	switch service.Platform() {
	case "linux-systemd":
		return "/etc/systemd/system/" + ServiceName + ".service"
	case "linux-upstart":
		return "/etc/init/" + ServiceName + ".conf"
	case "unix-systemv":
		return "/etc/init.d/" + ServiceName
	case "windows-service":
		return `Registry: HKEY_LOCAL_MACHINE\SYSTEM\CurrentControlSet\Services\` + ServiceName
	default:
		return "Unknown platform"
	}
}
