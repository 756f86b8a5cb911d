// Command n3ds-smb-probe is a smoke-test CLI: it discovers the microSD
// Management server on the LAN (or dials a host given with -host), lists
// a directory, and prints disk usage.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jfjallid/golog"

	"github.com/JohnDeved/n3ds-smb/config"
	"github.com/JohnDeved/n3ds-smb/discovery"
	"github.com/JohnDeved/n3ds-smb/n3dsmb"
)

func main() {
	var host = flag.String("host", "", "Target host IP address (skips discovery if set)")
	var netbiosName = flag.String("name", "", "NetBIOS name to authenticate against (required with -host)")
	var path = flag.String("path", `\`, "Directory to list")
	var cachePath = flag.String("cache", "", "Discovery cache file path")
	var debug = flag.Bool("debug", false, "Print a note on enabling debug logging via golog (the log level is not changed)")

	flag.Parse()

	logger := golog.Get("probe")
	if *debug {
		logger.Infoln("debug logging requested; set via the golog level env var")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ip := net.ParseIP(*host)
	name := *netbiosName
	if ip == nil {
		logger.Infoln("no -host given, running discovery...")
		result, err := n3dsmb.Discover(ctx, discovery.Options{
			CachePath:        *cachePath,
			Config:           config.Default(),
			AllowInteractive: true,
		})
		if err != nil {
			logger.Errorln("discovery failed:", err)
			os.Exit(1)
		}
		ip = result.IP
		name = result.Name
		logger.Infof("discovered %s at %s (cache=%s multicast=%s metadata=%s total=%s)",
			name, ip, result.Timing.CacheProbe, result.Timing.Multicast, result.Timing.MetadataFetch, result.Timing.Total)
	}

	client := n3dsmb.NewClient(ip, name)
	if err := client.Connect(ctx); err != nil {
		logger.Errorln("connect failed:", err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Printf("Connected to %s (%s), state=%s\n", name, ip, client.State())

	entries, err := client.Listdir(ctx, *path)
	if err != nil {
		logger.Errorln("listdir failed:", err)
		os.Exit(1)
	}
	fmt.Printf("%s:\n", *path)
	for _, e := range entries {
		fmt.Printf("  %-30s %10d bytes\n", e.Name, e.Size)
	}

	info, err := client.DiskInfo(ctx)
	if err != nil {
		logger.Errorln("diskinfo failed:", err)
		os.Exit(1)
	}
	fmt.Printf("disk: %d used / %d total (%d free)\n", info.UsedBytes, info.TotalBytes, info.FreeBytes)
}
