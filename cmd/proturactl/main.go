// Command proturactl is an operator-facing CLI over the /proc
// surface: it brings up the same logging and mount bookkeeping a
// booted instance would register, then lets an operator list,
// read, or watch the resulting entries (/proc/task_api's
// informational files, /proc/mounts, /proc/klog) without writing a
// one-off client for each.
//
// Grounded on ja7ad-consumption's cmd/consumption/main.go: a single
// root cobra.Command carrying flags, dispatching into subcommands
// with a plain RunE, rather than the more elaborate multi-command
// trees some CLIs use.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"protura/klog"
	"protura/procfs"
)

var klogCapacity int

func bootstrap() {
	klog.RegisterOutput(klog.WriterOutput{W: os.Stderr})
	procfs.RegisterKlogRing(klog.NewRingOutput(klogCapacity))
	procfs.RegisterMount(procfs.Mount{Device: "none", MountPoint: "/", FsType: "protura-rootfs"})
	procfs.RegisterMount(procfs.Mount{Device: "proc", MountPoint: "/proc", FsType: "procfs"})
}

func main() {
	root := &cobra.Command{
		Use:   "proturactl",
		Short: "inspect a protura instance's /proc surface",
		Long: `proturactl brings up the logging ring and mount table a running
instance registers under /proc, then lets you list or read those
entries the way you'd cat files under a real /proc.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) { bootstrap() },
	}
	root.PersistentFlags().IntVar(&klogCapacity, "klog-capacity", 256, "number of log lines the ring output retains")

	root.AddCommand(lsCmd(), catCmd(), klogCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "list the /proc entries currently registered",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := []string{"version", "mounts", "klog"}
			sort.Strings(names)
			for _, n := range names {
				if _, ok := procfs.Root.Lookup(n); ok {
					fmt.Println(n)
				}
			}
			return nil
		},
	}
}

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <entry>",
		Short: "print the content of one /proc entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimPrefix(args[0], "/proc/")
			e, ok := procfs.Root.Lookup(name)
			if !ok {
				return fmt.Errorf("no such entry: %s", args[0])
			}
			content, errno := e.Read()
			if errno != 0 {
				return fmt.Errorf("read %s: %s", args[0], errno.Error())
			}
			os.Stdout.Write(content)
			return nil
		},
	}
}

func klogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "klog",
		Short: "stream the in-memory log ring",
		RunE: func(cmd *cobra.Command, args []string) error {
			if procfs.KlogRing == nil {
				return fmt.Errorf("klog ring not initialized")
			}
			for _, line := range procfs.KlogRing.Lines() {
				fmt.Print(line)
			}
			return nil
		},
	}
}
