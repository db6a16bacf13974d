package parser

// registerBuiltins installs the stock parsers. Spelling variants of
// the same command share one implementation; prefix matching in the
// registry covers argument suffixes.
func registerBuiltins(r *Registry) {
	for _, osKey := range []string{OSIOSXR, OSIOSXE} {
		r.Register(osKey, "show version", parseShowVersion)
		r.Register(osKey, "show interfaces", parseInterfaces)
		r.Register(osKey, "show bgp summary", parseBGPSummary)
		r.Register(osKey, "show bgp ipv4 unicast summary", parseBGPSummary)
		r.Register(osKey, "show ip ospf neighbor", parseOSPFNeighbors)
		r.Register(osKey, "show ospf neighbor", parseOSPFNeighbors)
		r.Register(osKey, "show isis adjacency", parseISISAdjacency)
		r.Register(osKey, "show bfd session", parseBFDSessions)
		r.Register(osKey, "show mpls ldp neighbor", parseLDPNeighbors)
	}

	r.Register(OSIOSXR, "show ipv4 interface brief", parseInterfaceBriefXR)
	r.Register(OSIOSXR, "show ip interface brief", parseInterfaceBriefXR)
	r.Register(OSIOSXR, "show route summary", parseRouteSummaryXR)

	r.Register(OSIOSXE, "show ip interface brief", parseInterfaceBriefXE)
	r.Register(OSIOSXE, "show ip bgp summary", parseBGPSummary)
	r.Register(OSIOSXE, "show ip route summary", parseRouteSummaryXE)
	r.Register(OSIOSXE, "show processes cpu", parseProcessesCPU)
}
