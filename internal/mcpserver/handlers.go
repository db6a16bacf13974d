package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"auspex/internal/correlate"
	"auspex/internal/facts"
	"auspex/internal/pipeline"
	"auspex/internal/reason"
)

type hostArgs struct {
	Host string `json:"host"`
}

type runArgs struct {
	Hosts []string `json:"hosts"`
	Force bool     `json:"force"`
}

// decodeArgs round-trips the request arguments through JSON into v.
// Absent arguments leave v at its zero value.
func decodeArgs(request mcp.CallToolRequest, v interface{}) error {
	data, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}

// textResult renders v as indented JSON text content.
func textResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("format result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

type hostEntry struct {
	Host         string `json:"host"`
	Platform     string `json:"platform,omitempty"`
	Status       string `json:"status"`
	StatusReason string `json:"status_reason,omitempty"`
}

func (s *Server) handleListHosts(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hosts, err := facts.ListHosts(s.paths)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list hosts: %v", err)), nil
	}

	byHost := map[string]reason.Analysis{}
	if perDev, err := reason.Load(s.paths); err == nil {
		byHost = perDev.Devices
	}

	seen := make(map[string]bool, len(hosts))
	entries := make([]hostEntry, 0, len(hosts))
	for _, h := range hosts {
		seen[h] = true
		e := hostEntry{Host: h, Status: "unanalyzed"}
		if doc, err := facts.Load(s.paths, h); err == nil {
			e.Platform = doc.PlatformHint
		}
		if an, ok := byHost[h]; ok {
			e.Status = an.Status
			e.StatusReason = an.StatusReason
			if an.Platform != "" {
				e.Platform = an.Platform
			}
		}
		entries = append(entries, e)
	}

	// An analysis can outlive its facts when a capture disappears and
	// the stale facts document is quarantined.
	for h, an := range byHost {
		if seen[h] {
			continue
		}
		entries = append(entries, hostEntry{
			Host:         h,
			Platform:     an.Platform,
			Status:       an.Status,
			StatusReason: an.StatusReason,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Host < entries[j].Host })

	return textResult(map[string]interface{}{
		"count": len(entries),
		"hosts": entries,
	}), nil
}

func (s *Server) handleHostFacts(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args hostArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Host == "" {
		return mcp.NewToolResultError("host is required"), nil
	}

	doc, err := facts.Load(s.paths, args.Host)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return mcp.NewToolResultError(fmt.Sprintf("no facts for host %s; check list_hosts or run run_analysis", args.Host)), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	return textResult(doc), nil
}

func (s *Server) handleDeviceAnalysis(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args hostArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Host == "" {
		return mcp.NewToolResultError("host is required"), nil
	}

	perDev, err := reason.Load(s.paths)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return mcp.NewToolResultError("no per-device analysis yet; run run_analysis first"), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}

	an, ok := perDev.Devices[args.Host]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no analysis for host %s; check list_hosts", args.Host)), nil
	}
	return textResult(an), nil
}

func (s *Server) handleNetworkReport(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := correlate.Load(s.paths)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return mcp.NewToolResultError("no network report; run run_analysis first"), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	return textResult(doc), nil
}

func (s *Server) handleRunAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args runArgs
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	s.log.Info("Tool run_analysis (hosts=%v force=%v)", args.Hosts, args.Force)
	res, err := s.runner.Run(ctx, pipeline.Options{Hosts: args.Hosts, Force: args.Force})
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		return mcp.NewToolResultError(pipeline.ErrBusy.Error()), nil
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", err)), nil
	}
	return textResult(res), nil
}
