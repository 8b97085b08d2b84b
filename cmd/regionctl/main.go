// Command regionctl is the operator's control tool for a rez region:
// inspecting and repairing on-disk simstate, and querying or exercising a
// running regiond's HTTP surfaces. Grounded on cmd/cli/cli/object.go's
// role as the thing an operator runs against a live node, reworked onto
// stdlib flag subcommands in place of urfave/cli, which this module's
// dependency set never pulled in.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package main

import (
	"bytes"
	"encoding/xml"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rezsim/rez/persist"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "scan":
		err = runScan(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "repair":
		err = runRepair(os.Args[2:])
	case "metrics":
		err = runMetrics(os.Args[2:])
	case "login":
		err = runLogin(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "regionctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: regionctl <command> [flags]

commands:
  scan    -dir <path>                         list simstate short names found under dir
  inspect -dir <path> -name <short-name>       load a simstate snapshot and print its contents
  repair  -dir <path> -name <short-name>       reconstruct a damaged snapshot from its backup shards
  metrics -addr <host:port>                    fetch and print a running region's /metrics output
  login   -url <http://host:port> -agent <uuid> issue a login_to_simulator XML-RPC call and print the seed cap`)
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	dir := fs.String("dir", "./simstate", "directory holding simstate files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	names, err := persist.ScanSimStateDir(*dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no simstate files found")
		return nil
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dir := fs.String("dir", "./simstate", "directory holding simstate files")
	name := fs.String("name", "", "short name of the simstate snapshot to load")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	records, err := persist.LoadSimState(*dir, *name)
	if err != nil {
		return fmt.Errorf("loading %q: %w", *name, err)
	}
	printTree(records, 0)
	return nil
}

func printTree(records []*persist.PrimRecord, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	for _, rec := range records {
		fmt.Printf("%s%s  pos=%v  inventory=%d  children=%d\n",
			indent, rec.Prim.ID, rec.Prim.WorldPos, len(rec.Inventory), len(rec.Children))
		printTree(rec.Children, depth+1)
	}
}

func runRepair(args []string) error {
	fs := flag.NewFlagSet("repair", flag.ExitOnError)
	dir := fs.String("dir", "./simstate", "directory holding simstate files")
	name := fs.String("name", "", "short name of the simstate snapshot to repair")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	records, err := persist.RepairSimState(*dir, *name)
	if err != nil {
		return fmt.Errorf("repairing %q: %w", *name, err)
	}
	fmt.Printf("recovered %d root prims for %q from backup shards\n", len(records), *name)
	return nil
}

func runMetrics(args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	addr := fs.String("addr", "localhost:9090", "host:port regiond's metrics server listens on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get("http://" + *addr + "/metrics")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	_, err = io.Copy(os.Stdout, resp.Body)
	return err
}

func runLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	baseURL := fs.String("url", "http://localhost:9000", "region's capability/federation listener base URL")
	agentID := fs.String("agent", "", "agent id to log in as")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *agentID == "" {
		return fmt.Errorf("-agent is required")
	}
	if _, err := uuid.Parse(*agentID); err != nil {
		return fmt.Errorf("-agent: %w", err)
	}

	body := xmlRPCLoginBody(*agentID)
	client := http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(*baseURL, "text/xml", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		XMLName xml.Name `xml:"methodResponse"`
		Fault   *struct {
			String string `xml:"value>string"`
		} `xml:"fault"`
		Params []string `xml:"params>param>value>string"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if envelope.Fault != nil {
		return fmt.Errorf("login_to_simulator faulted: %s", envelope.Fault.String)
	}
	if len(envelope.Params) == 0 {
		return fmt.Errorf("login_to_simulator returned no seed capability")
	}
	fmt.Println("seed capability:", envelope.Params[0])
	return nil
}

func xmlRPCLoginBody(agentID string) []byte {
	return []byte(`<?xml version="1.0"?><methodCall><methodName>login_to_simulator</methodName>` +
		`<params><param><value><string>` + agentID + `</string></value></param></params></methodCall>`)
}
