//go:build windows

// Package main provides Windows service support for the Renovisio
// visualization backend.
//
// service_windows.go implements the Windows Service interface using
// github.com/kardianos/service, so the backend can run as a background
// service with proper Start/Stop handling.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"
)

// Program implements service.Interface for Windows Service integration.
// It wraps the application lifecycle and provides Start/Stop methods.
type Program struct {
	// exit is closed when the application has finished shutting down
	exit chan struct{}
}

// Start is called when the service is started. It launches the
// application in a goroutine and returns immediately, as the service
// manager requires.
func (p *Program) Start(s service.Service) error {
	p.exit = make(chan struct{})

	go p.run()

	return nil
}

// Stop is called when the service is stopped. It requests a graceful
// drain and waits for the application to finish.
func (p *Program) Stop(s service.Service) error {
	requestStop()

	select {
	case <-p.exit:
		// Clean shutdown completed
	case <-time.After(60 * time.Second):
		return fmt.Errorf("timeout waiting for service to stop")
	}

	return nil
}

// run executes the application until shutdown completes.
func (p *Program) run() {
	defer close(p.exit)

	runApplication()
}

// ServiceConfig returns the service configuration for Windows.
func ServiceConfig() *service.Config {
	return &service.Config{
		Name:        "RenovisioBackend",
		DisplayName: "Renovisio Visualization Backend",
		Description: "Generates AI renovation concept images from room photos",
		Option: service.KeyValue{
			"StartType": "automatic",
		},
	}
}

// RunAsService runs the application under the Windows service manager.
// Returns true if it ran as a service, false if running interactively.
func RunAsService() (bool, error) {
	prg := &Program{}

	s, err := service.New(prg, ServiceConfig())
	if err != nil {
		return false, fmt.Errorf("failed to create service: %w", err)
	}

	if service.Interactive() {
		return false, nil
	}

	if err := s.Run(); err != nil {
		return true, fmt.Errorf("service run failed: %w", err)
	}

	return true, nil
}

// controlService creates the service handle and applies a control action.
func controlService(action func(service.Service) error, doneMsg string) error {
	s, err := service.New(&Program{}, ServiceConfig())
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if err := action(s); err != nil {
		return err
	}

	fmt.Println(doneMsg)
	return nil
}

// ServiceStatus returns the current status of the Windows service.
func ServiceStatus() (service.Status, error) {
	s, err := service.New(&Program{}, ServiceConfig())
	if err != nil {
		return service.StatusUnknown, fmt.Errorf("failed to create service: %w", err)
	}

	status, err := s.Status()
	if err != nil {
		return service.StatusUnknown, fmt.Errorf("failed to get service status: %w", err)
	}

	return status, nil
}

// PrintServiceUsage prints help for the service management commands.
func PrintServiceUsage() {
	fmt.Println("Renovisio Backend Service Management")
	fmt.Println()
	fmt.Println("Usage: renovisio_backend.exe <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  install    Install the application as a Windows service")
	fmt.Println("  uninstall  Remove the Windows service (alias: remove)")
	fmt.Println("  start      Start the Windows service")
	fmt.Println("  stop       Stop the Windows service")
	fmt.Println("  restart    Restart the Windows service (stop then start)")
	fmt.Println("  status     Show the current service status")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Run without arguments to start the server in foreground mode.")
}

// HandleServiceCommand handles service-related command-line arguments.
// args excludes the program name. Returns true if a service command was
// handled, false otherwise.
func HandleServiceCommand(args []string) bool {
	if len(args) < 1 {
		return false
	}

	var err error
	switch args[0] {
	case "install":
		err = controlService(service.Service.Install, "Service installed successfully")
	case "uninstall", "remove":
		err = controlService(service.Service.Uninstall, "Service uninstalled successfully")
	case "start":
		err = controlService(service.Service.Start, "Service started successfully")
	case "stop":
		err = controlService(service.Service.Stop, "Service stopped successfully")
	case "restart":
		err = controlService(service.Service.Restart, "Service restarted successfully")
	case "status":
		status, statusErr := ServiceStatus()
		if statusErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", statusErr)
			os.Exit(1)
		}
		switch status {
		case service.StatusRunning:
			fmt.Println("Service is running")
		case service.StatusStopped:
			fmt.Println("Service is stopped")
		default:
			fmt.Println("Service status unknown")
		}
		return true
	case "help", "-h", "--help", "-help":
		PrintServiceUsage()
		return true
	default:
		return false
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return true
}
