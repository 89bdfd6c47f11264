package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sox-verified-go/accumulator"
	"sox-verified-go/circuit"
	"sox-verified-go/client"
	"sox-verified-go/commitment"
	"sox-verified-go/dispute"
	"sox-verified-go/internal/store"
	"sox-verified-go/primitives"
	"sox-verified-go/types"
)

const (
	flagOut         = "out"
	flagKey         = "key"
	flagDescription = "description"
	flagTrace       = "trace"
	flagCiphertext  = "ciphertext"
	flagGate        = "gate"
	flagBlocks      = "blocks"
	flagPrefix      = "prefix"
	flagOffer       = "offer"
	flagPrefixRoot  = "prefix-root"
)

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return b, nil
}

func keyFlag(cmd *cobra.Command) (circuit.Key, error) {
	raw, _ := cmd.Flags().GetString(flagKey)
	b, err := decodeHex(raw)
	if err != nil {
		return circuit.Key{}, err
	}
	return circuit.KeyFromBytes(b)
}

func descriptionFlag(cmd *cobra.Command) (types.Hash, error) {
	raw, _ := cmd.Flags().GetString(flagDescription)
	return types.ParseHash(raw)
}

func idArg(s string) (store.ID, error) { return store.ParseID(s) }

// readOffer loads an offer from either the encrypt output or a bare offer.
func readOffer(path string) (client.Offer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return client.Offer{}, err
	}
	var wrapped struct {
		Offer *client.Offer `json:"offer"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return client.Offer{}, fmt.Errorf("parse offer: %w", err)
	}
	if wrapped.Offer != nil {
		return *wrapped.Offer, nil
	}
	var o client.Offer
	if err := json.Unmarshal(raw, &o); err != nil {
		return client.Offer{}, fmt.Errorf("parse offer: %w", err)
	}
	return o, nil
}

// exchangeCircuit compiles the circuit for a ciphertext and returns its blocks.
func (a *app) exchangeCircuit(ciphertext []byte) (*circuit.Circuit, [][]byte, error) {
	blocks, err := circuit.SplitBlocks(ciphertext, a.cfg.BlockSize)
	if err != nil {
		return nil, nil, err
	}
	c, _, err := circuit.CompileExchangeCircuit(len(blocks), a.cfg.BlockSize)
	if err != nil {
		return nil, nil, err
	}
	return c, blocks, nil
}

type encryptResult struct {
	Offer        client.Offer       `json:"offer"`
	Key          commitment.Opening `json:"key_opening"`
	CiphertextID string             `json:"ciphertext_id"`
	CircuitID    string             `json:"circuit_id"`
}

func encryptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encrypt [plaintext-file]",
		Short: "Encrypt a file for sale and print the offer",
		Long: `Encrypt generates a fresh key, encrypts the file with AES-CTR, writes the
ciphertext, and prints the offer together with the key opening. Keep the
opening private until the buyer has paid.

Examples:
  soxctl encrypt data.bin --out data.enc
  soxctl encrypt data.bin --out data.enc --block-size 32`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString(flagOut)
			if out == "" {
				return fmt.Errorf("--%s is required", flagOut)
			}

			v, err := client.NewVendor(plaintext, a.cfg.BlockSize, client.CTREncryption{}, a.clientOpts()...)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, v.Ciphertext(), 0o644); err != nil {
				return err
			}
			ctID, err := a.store.Put(store.KindCiphertext, v.Ciphertext())
			if err != nil {
				return err
			}
			cID, err := a.store.PutCircuit(v.Circuit())
			if err != nil {
				return err
			}
			return printJSON(cmd, encryptResult{
				Offer:        v.Offer(),
				Key:          v.RevealKey(),
				CiphertextID: ctID.String(),
				CircuitID:    cID.String(),
			})
		},
	}
	cmd.Flags().String(flagOut, "", "ciphertext output file")
	return cmd
}

func describeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [plaintext-file]",
		Short: "Print the description digest of a plaintext",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			d, err := primitives.DescriptionDigest(plaintext, a.cfg.BlockSize)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"description": types.HexHash(d),
				"block_size":  a.cfg.BlockSize,
			})
		},
	}
}

func compileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile and store the exchange circuit for a block count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt(flagBlocks)
			c, _, err := circuit.CompileExchangeCircuit(n, a.cfg.BlockSize)
			if err != nil {
				return err
			}
			id, err := a.store.PutCircuit(c)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"circuit_id":  id.String(),
				"root":        types.HexHash(c.Digest(a.treeOpts()...)),
				"gates":       c.Len(),
				"block_count": c.BlockCount,
				"block_size":  c.BlockSize,
			})
		},
	}
	cmd.Flags().Int(flagBlocks, 1, "number of ciphertext blocks")
	return cmd
}

func evaluateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate [ciphertext-file]",
		Short: "Evaluate the exchange circuit and store the trace",
		Long: `Evaluate decrypts the ciphertext inside the circuit with the given key and
compares the result with the description. The trace is stored; its id is what
prove and bisect take.

Example:
  soxctl evaluate data.enc --key 0x... --description 0x...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ciphertext, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			key, err := keyFlag(cmd)
			if err != nil {
				return err
			}
			desc, err := descriptionFlag(cmd)
			if err != nil {
				return err
			}
			c, _, err := a.exchangeCircuit(ciphertext)
			if err != nil {
				return err
			}
			trace, err := circuit.Evaluate(ciphertext, a.cfg.BlockSize, c, key, desc)
			if err != nil {
				return err
			}
			for _, g := range c.Gates {
				if !g.IsInput() {
					a.metrics.CountGate(g.Opcode.String(), 1)
				}
			}
			cID, err := a.store.PutCircuit(c)
			if err != nil {
				return err
			}
			tID, err := a.store.PutTrace(trace)
			if err != nil {
				return err
			}
			a.log.Info("evaluated", "gates", trace.Len(), "accepted", trace.Accepted())
			return printJSON(cmd, map[string]interface{}{
				"circuit_id": cID.String(),
				"trace_id":   tID.String(),
				"trace_root": types.HexHash(trace.Digest(a.treeOpts()...)),
				"accepted":   trace.Accepted(),
				"output":     types.HexBytes(trace.Output()),
			})
		},
	}
	cmd.Flags().String(flagKey, "", "revealed key, 32 bytes hex (AES key then counter)")
	cmd.Flags().String(flagDescription, "", "description digest, hex")
	return cmd
}

func digestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest [ciphertext|circuit|trace] [file-or-id]",
		Short: "Print an accumulator root",
		Long: `Digest prints the accumulator root of a ciphertext file, or of a stored
circuit or trace. With --prefix k a trace digest covers only its first k
entries, the value exchanged in each bisection round.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"ciphertext", "circuit", "trace"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var root types.Hash
			switch args[0] {
			case "ciphertext":
				ciphertext, err := os.ReadFile(args[1])
				if err != nil {
					return err
				}
				_, blocks, err := a.exchangeCircuit(ciphertext)
				if err != nil {
					return err
				}
				root = accumulator.Digest(blocks, a.treeOpts()...)
			case "circuit":
				id, err := idArg(args[1])
				if err != nil {
					return err
				}
				c, err := a.store.GetCircuit(id)
				if err != nil {
					return err
				}
				root = c.Digest(a.treeOpts()...)
			case "trace":
				id, err := idArg(args[1])
				if err != nil {
					return err
				}
				trace, err := a.store.GetTrace(id)
				if err != nil {
					return err
				}
				k, _ := cmd.Flags().GetInt(flagPrefix)
				if k < 0 {
					k = trace.Len()
				}
				if root, err = trace.PrefixDigest(k, a.treeOpts()...); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown accumulator %q", args[0])
			}
			return printJSON(cmd, map[string]interface{}{"root": types.HexHash(root)})
		},
	}
	cmd.Flags().Int(flagPrefix, -1, "trace prefix length (default: whole trace)")
	return cmd
}

func commitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "commit [a-hex] [b-hex]",
		Short: "Commit to a pair of values",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := decodeHex(args[0])
			if err != nil {
				return err
			}
			y, err := decodeHex(args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, commitment.Commit(x, y))
		},
	}
}

func openCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open [commitment.json]",
		Short: "Check a commitment against its opening",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var c commitment.Commitment
			if err := json.Unmarshal(raw, &c); err != nil {
				return fmt.Errorf("parse commitment: %w", err)
			}
			x, y, err := commitment.Open(types.Hash(c.C), c.Opening)
			if err != nil {
				return err
			}
			return printJSON(cmd, commitment.Opening{A: x, B: y})
		},
	}
}

// bundle is the file prove writes and verify reads. Anchors are the
// prover's own; verify never trusts them.
type bundle struct {
	Proof   *dispute.Proof  `json:"proof"`
	Anchors dispute.Anchors `json:"anchors"`
}

func proveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Assemble the dispute proof for one gate of a stored trace",
		Long: `Prove builds the bundle an on-chain verifier needs to check one gate: the
gate's inclusion in the circuit, its operands' inclusion in the ciphertext and
the agreed trace prefix, and the extension of that prefix by the gate's output.

Example:
  soxctl prove --trace <id> --ciphertext data.enc --key 0x... --description 0x... --gate 17`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			traceID, _ := cmd.Flags().GetString(flagTrace)
			id, err := idArg(traceID)
			if err != nil {
				return err
			}
			trace, err := a.store.GetTrace(id)
			if err != nil {
				return err
			}
			ctPath, _ := cmd.Flags().GetString(flagCiphertext)
			ciphertext, err := os.ReadFile(ctPath)
			if err != nil {
				return err
			}
			key, err := keyFlag(cmd)
			if err != nil {
				return err
			}
			desc, err := descriptionFlag(cmd)
			if err != nil {
				return err
			}
			c, blocks, err := a.exchangeCircuit(ciphertext)
			if err != nil {
				return err
			}

			s, err := client.NewSession(dispute.Evidence{
				Circuit:    c,
				Trace:      trace,
				Ciphertext: blocks,
				Constants:  circuit.ExchangeSlots.Bind(key, desc, a.cfg.BlockSize),
			}, a.clientOpts()...)
			if err != nil {
				return err
			}
			g, _ := cmd.Flags().GetInt(flagGate)
			p, err := s.DisputeProof(g)
			if err != nil {
				return err
			}
			anchors, err := s.Anchors()
			if err != nil {
				return err
			}

			b := bundle{Proof: p, Anchors: anchors}
			raw, err := json.Marshal(b)
			if err != nil {
				return err
			}
			if _, err := a.store.Put(store.KindProof, raw); err != nil {
				return err
			}
			if out, _ := cmd.Flags().GetString(flagOut); out != "" {
				return os.WriteFile(out, raw, 0o644)
			}
			return printJSON(cmd, b)
		},
	}
	cmd.Flags().String(flagTrace, "", "stored trace id")
	cmd.Flags().String(flagCiphertext, "", "ciphertext file")
	cmd.Flags().String(flagKey, "", "revealed key, 32 bytes hex")
	cmd.Flags().String(flagDescription, "", "description digest, hex")
	cmd.Flags().Int(flagGate, 0, "disputed gate index")
	cmd.Flags().String(flagOut, "", "write the bundle here instead of stdout")
	return cmd
}

func verifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [bundle.json]",
		Short: "Check a dispute proof bundle and the gate it proves",
		Long: `Verify checks a bundle the way the on-chain verifier would. The anchors come
from the published offer and the revealed key, and the prefix root is the digest
bisection settled on; nothing the prover wrote into the bundle is trusted.

Example:
  soxctl verify bundle.json --offer offer.json --key 0x... --prefix-root 0x...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offerPath, _ := cmd.Flags().GetString(flagOffer)
			if offerPath == "" {
				return fmt.Errorf("--%s is required", flagOffer)
			}
			offer, err := readOffer(offerPath)
			if err != nil {
				return err
			}
			key, err := keyFlag(cmd)
			if err != nil {
				return err
			}
			anchors, err := offer.Anchors(commitment.Opening{A: key.AES[:], B: key.Counter[:]})
			if err != nil {
				return err
			}
			rawPrefix, _ := cmd.Flags().GetString(flagPrefixRoot)
			if rawPrefix == "" {
				return fmt.Errorf("--%s is required", flagPrefixRoot)
			}
			agreed, err := types.ParseHash(rawPrefix)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var b bundle
			if err := json.Unmarshal(raw, &b); err != nil {
				return err
			}
			if b.Proof == nil {
				return fmt.Errorf("bundle has no proof")
			}
			if err := dispute.Check(b.Proof, anchors, agreed, primitives.V1); err != nil {
				a.log.Warn("gate rejected", "gate", b.Proof.GateIndex, "error", err.Error())
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"gate":   b.Proof.GateIndex,
				"opcode": b.Proof.Gate.Opcode.String(),
				"valid":  true,
			})
		},
	}
	cmd.Flags().String(flagOffer, "", "offer JSON, as printed by encrypt")
	cmd.Flags().String(flagKey, "", "revealed key, 32 bytes hex")
	cmd.Flags().String(flagPrefixRoot, "", "agreed digest of the trace before the disputed gate, as printed by bisect")
	return cmd
}

func bisectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bisect [trace-id] [trace-id]",
		Short: "Find the first gate two stored traces disagree on",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var traces [2]circuit.Trace
			for i, arg := range args {
				id, err := idArg(arg)
				if err != nil {
					return err
				}
				if traces[i], err = a.store.GetTrace(id); err != nil {
					return err
				}
			}
			if traces[0].Len() != traces[1].Len() {
				return types.NewShapeMismatchError("trace length", traces[0].Len(), traces[1].Len())
			}
			oracle := func(t circuit.Trace) client.PrefixOracle {
				return client.PrefixFunc(func(k int) (types.Hash, error) {
					return t.PrefixDigest(k, a.treeOpts()...)
				})
			}
			res, err := client.Bisect(cmd.Context(), traces[0].Len(),
				oracle(traces[0]), oracle(traces[1]), a.clientOpts()...)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"gate":        res.Gate,
				"prefix_root": types.HexHash(res.Prefix),
				"rounds":      res.Rounds,
				"transcript":  types.HexHash(res.Transcript.Tip),
			})
		},
	}
}
