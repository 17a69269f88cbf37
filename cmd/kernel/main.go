// Command kernel drives the boot sequence described by the core
// execution substrate's overview: parse the kernel command line,
// stand up logging, bring physical memory and the root filesystem up
// through the three initcall phases (core, subsys, device), then park
// waiting for a shutdown signal the way a real kernel parks in its
// idle loop once boot completes.
//
// Device drivers, on-disk filesystems, and networking are external
// collaborators this substrate hands contracts to rather than
// implements, so this binary's job stops at bring-up: it has no PIC,
// IDE, or framebuffer to hand control to afterward.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"protura/cmdline"
	"protura/initcall"
	"protura/klog"
	"protura/mem"
	"protura/procfs"
	"protura/vfs"
)

var physmem *mem.Physmem_t

func registerBootInitcalls() {
	initcall.Register(initcall.Initcall_t{
		Name:  "klog.console",
		Phase: initcall.Core,
		Fn: func() error {
			klog.RegisterOutput(klog.WriterOutput{W: os.Stdout})
			procfs.RegisterKlogRing(klog.NewRingOutput(512))
			return nil
		},
	})
	initcall.Register(initcall.Initcall_t{
		Name:  "mem.phys",
		Phase: initcall.Core,
		Deps:  []string{"klog.console"},
		Fn: func() error {
			npages := cmdline.GetInt("physpages", 32768)
			physmem = mem.Phys_init(npages)
			klog.Kp(klog.NORMAL, "memory: %d pages available\n", npages)
			return nil
		},
	})
	initcall.Register(initcall.Initcall_t{
		Name:  "vfs.root",
		Phase: initcall.Subsys,
		Deps:  []string{"mem.phys"},
		Fn: func() error {
			sb := vfs.MkSuperblock(0, vfs.Cred_t{Uid: 0, Gid: 0})
			_ = sb
			procfs.RegisterMount(procfs.Mount{Device: "none", MountPoint: "/", FsType: "protura-rootfs"})
			klog.Kp(klog.NORMAL, "vfs: root filesystem mounted\n")
			return nil
		},
	})
	initcall.Register(initcall.Initcall_t{
		Name:  "procfs.mount",
		Phase: initcall.Device,
		Deps:  []string{"vfs.root"},
		Fn: func() error {
			procfs.RegisterMount(procfs.Mount{Device: "proc", MountPoint: "/proc", FsType: "procfs"})
			klog.Kp(klog.NORMAL, "procfs: mounted at /proc\n")
			return nil
		},
	})
}

func main() {
	flag.Parse()
	cmdline.Init(strings.Join(flag.Args(), " "))
	cmdline.KparamInit()

	registerBootInitcalls()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := initcall.Run(ctx); err != nil {
		klog.Panic("boot failed: %v", err)
	}
	klog.Kp(klog.NORMAL, "boot complete\n")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("shutting down")
}
