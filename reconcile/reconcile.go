// Package reconcile cross-checks Ping events against the Pong events a
// candidate bot submitted. It does no I/O besides writing findings to the
// logger it is handed.
package reconcile

import (
	"fmt"
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"

	"github.com/bludya/pong-checker/pingpong"
)

type Kind int

const (
	CountMismatch Kind = iota
	DuplicatePong
	NoDuplicates
	OrphanPong
	AllPongsValid
	MissingPongs
)

func (k Kind) String() string {
	switch k {
	case CountMismatch:
		return "CountMismatch"
	case DuplicatePong:
		return "DuplicatePong"
	case NoDuplicates:
		return "NoDuplicates"
	case OrphanPong:
		return "OrphanPong"
	case AllPongsValid:
		return "AllPongsValid"
	case MissingPongs:
		return "MissingPongs"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

type Severity int

const (
	Info Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "info"
}

// Finding is one observation. Only the fields relevant to Kind are set.
type Finding struct {
	Kind Kind

	// CountMismatch
	Pings, Pongs int
	// DuplicatePong
	Raw, Unique int
	// OrphanPong
	PingTxHash common.Hash
	// MissingPongs
	MissingPercentage float64
	Missing           []common.Hash
}

func (f Finding) Severity() Severity {
	switch f.Kind {
	case NoDuplicates, AllPongsValid:
		return Info
	default:
		return Error
	}
}

type Report struct {
	Pings             int
	Pongs             int
	UniquePingRefs    int
	Orphans           []common.Hash
	Missing           []common.Hash
	MissingPercentage float64
	Findings          []Finding
}

// Duplicates is the number of pongs answering an already answered ping.
func (r Report) Duplicates() int {
	return r.Pongs - r.UniquePingRefs
}

func (r Report) Errors() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity() == Error {
			n++
		}
	}
	return n
}

// Reconcile compares pings with the pongs of a single candidate. Findings
// come out in a fixed order: count, duplicates, orphans, missing.
func Reconcile(pings []pingpong.PingEvent, pongs []pingpong.PongEvent) Report {
	pingHashes := mapset.NewThreadUnsafeSet[common.Hash]()
	pingOrder := make([]common.Hash, 0, len(pings))
	for _, ping := range pings {
		if pingHashes.Add(ping.TxHash) {
			pingOrder = append(pingOrder, ping.TxHash)
		}
	}

	pongPingHashes := mapset.NewThreadUnsafeSet[common.Hash]()
	refOrder := make([]common.Hash, 0, len(pongs))
	for _, pong := range pongs {
		if pongPingHashes.Add(pong.PingTxHash) {
			refOrder = append(refOrder, pong.PingTxHash)
		}
	}

	report := Report{
		Pings:          len(pings),
		Pongs:          len(pongs),
		UniquePingRefs: pongPingHashes.Cardinality(),
	}

	if len(pongs) != len(pings) {
		report.Findings = append(report.Findings, Finding{Kind: CountMismatch, Pings: len(pings), Pongs: len(pongs)})
	}

	if report.UniquePingRefs != len(pongs) {
		report.Findings = append(report.Findings, Finding{Kind: DuplicatePong, Raw: len(pongs), Unique: report.UniquePingRefs})
	} else {
		report.Findings = append(report.Findings, Finding{Kind: NoDuplicates})
	}

	for _, ref := range refOrder {
		if !pingHashes.Contains(ref) {
			report.Orphans = append(report.Orphans, ref)
			report.Findings = append(report.Findings, Finding{Kind: OrphanPong, PingTxHash: ref})
		}
	}
	if len(report.Orphans) == 0 {
		report.Findings = append(report.Findings, Finding{Kind: AllPongsValid})
	}

	covered := pongPingHashes.Intersect(pingHashes).Cardinality()
	if covered < pingHashes.Cardinality() {
		for _, ping := range pingOrder {
			if !pongPingHashes.Contains(ping) {
				report.Missing = append(report.Missing, ping)
			}
		}
		report.MissingPercentage = missingPercentage(covered, pingHashes.Cardinality())
		report.Findings = append(report.Findings, Finding{
			Kind:              MissingPongs,
			MissingPercentage: report.MissingPercentage,
			Missing:           report.Missing,
		})
	}
	return report
}

// missingPercentage is (1 - covered/total) * 100 rounded to two decimals.
func missingPercentage(covered, total int) float64 {
	p := (1 - float64(covered)/float64(total)) * 100
	return math.Round(p*100) / 100
}

func hexes(hashes []common.Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.Hex()
	}
	return out
}

// Log writes every finding to logger at its severity.
func (r Report) Log(logger log.Logger) {
	for _, f := range r.Findings {
		write := logger.Info
		if f.Severity() == Error {
			write = logger.Error
		}

		switch f.Kind {
		case CountMismatch:
			write("There is no 1 pong event per ping. Don't know yet if there are duplicates or missing", "pings", f.Pings, "pongs", f.Pongs)
		case DuplicatePong:
			write("There are duplicated pingHash in pongs", "pong events", f.Raw, "unique ping txs", f.Unique)
		case NoDuplicates:
			write("There are not duplicated pingHash in pongs")
		case OrphanPong:
			write("Pong not included in the pings txs", "pingHash", f.PingTxHash.Hex())
		case AllPongsValid:
			write("All pongs events has a valid ping tx")
		case MissingPongs:
			write("There are missing ping txs", "percentage", fmt.Sprintf("%.2f%%", f.MissingPercentage), "count", len(f.Missing))
			write("Missing pings", "txs", hexes(f.Missing))
		}
	}
}
