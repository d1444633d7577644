// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package proxy provides credential injection for sandboxed processes.
//
// [Server] is a forward HTTP proxy bound to an ephemeral loopback
// port. Sandboxed code routes outbound traffic through it; the proxy
// holds the secrets (API keys, tokens) that the sandbox never sees,
// injecting them into outbound requests on the sandbox's behalf.
//
// Egress is deny-by-default: a request is forwarded only when its
// target host appears in the explicit allowlist or is covered by a
// [CredentialRule] (which allows the host implicitly). Denied hosts
// receive 403 — an ordinary protocol outcome, not an error.
//
// Plain HTTP requests are forwarded with hop-by-hop headers stripped
// and the matching rule's header set, overwriting any value the caller
// supplied for the same name. HTTPS traffic uses CONNECT tunneling:
// the proxy applies the same allow check to the tunnel target, then
// bridges raw bytes. Tunneled traffic is TLS-opaque, so no injection
// happens inside a tunnel.
//
// Rule matching is a pure function of the immutable rule set and the
// target host, so concurrent connections never observe each other's
// credentials. Header values live in mmap-backed [secret.Buffer]
// memory (locked against swap, excluded from core dumps) and are never
// logged.
package proxy
