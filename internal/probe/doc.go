// Package probe answers one question per address: is anything there?
//
// A Prober checks a single target. The Executor fans a whole sweep out over
// a Prober with a fixed worker budget and a per-target timeout, and returns
// one Result per node id. A failing or slow target never affects the others.
//
// Two probers are provided. TCPProber connects to a handful of ports and
// treats a refused connection as proof the host is up. NmapProber runs an
// nmap ping scan and requires the nmap binary on PATH.
package probe
