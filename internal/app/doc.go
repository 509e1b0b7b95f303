// Package app composes the keyledger engines into a running application.
//
// # Architecture Role
//
// The app package wires storage, the per-key locker, the engines and the
// command dispatcher together and owns their lifecycle. It holds no ledger
// logic; that lives in internal/app/services.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── commands/           # Chat command parsing, dispatch and replies
//	├── domain/account/     # Account, deposit, position and journal models
//	├── keylock/            # Per-key critical sections
//	├── storage/            # Store contract with memory, redis and postgres backends
//	├── services/
//	│   ├── keys/           # Key registry (bind, join, lookup)
//	│   ├── accounts/       # Locked read-modify-write over accounts
//	│   ├── ledger/         # Credit, debit, transfer, sign-in, journal
//	│   ├── interest/       # Deposits and interactive withdrawal
//	│   ├── pricefeed/      # Quote feed, cache and scheduled warming
//	│   ├── invest/         # Buy, sell and portfolio valuation
//	│   ├── prompt/         # Interactive follow-up questions
//	│   └── wagering/       # Card games and settlement
//	├── httpapi/            # Admin routes and the websocket chat session
//	├── system/             # Service lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/keyledger/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/commands ──► internal/app/services/*
//	      │                                     │
//	      │                                     ├──► internal/app/keylock
//	      │                                     └──► internal/app/storage
//	      │
//	      └──► internal/app/httpapi (transport only)
//
// # Locking
//
// Every mutation runs under the key's lock from keylock. Multi-key operations
// lock in sorted order. Registry changes take the registry lock first and
// key locks second, so callers must never ask the registry anything while
// holding a key lock. Prompts are only awaited with no lock held.
package app
