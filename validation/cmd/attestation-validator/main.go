package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cloudx-io/sealedbid/core"
	enclaveapi "github.com/cloudx-io/sealedbid/enclaveapi"
	"github.com/cloudx-io/sealedbid/validation"
)

// Exit codes: 0 passed, 1 failed, 2 invalid input or runtime error.
const (
	exitFailed = 1
	exitError  = 2
)

const (
	flagPCRs        = "pcrs"
	flagFormat      = "format"
	flagAttestation = "attestation"
	flagPublicKey   = "public-key"
	flagBid         = "bid"
	flagAmount      = "amount"
)

// bidRecord is the part of a bid account, as served by the gateway, that a
// commit check needs.
type bidRecord struct {
	Address     core.Pubkey                      `json:"address"`
	Auction     core.Pubkey                      `json:"auction"`
	Bidder      core.Pubkey                      `json:"bidder"`
	Attestation enclaveapi.AttestationCOSEBase64 `json:"attestation"`
}

// row is one line of the summary.
type row struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
}

type report struct {
	Title   string   `json:"title"`
	Valid   bool     `json:"valid"`
	Checks  []row    `json:"checks"`
	Details []string `json:"details"`
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func options(c *cli.Context) (validation.Options, error) {
	knownPCRs, err := validation.LoadPCRsFromFile(c.String(flagPCRs))
	if err != nil {
		return validation.Options{}, err
	}
	return validation.Options{KnownPCRs: knownPCRs}, nil
}

func baseChecks(r validation.BaseValidationResult) []row {
	return []row{
		{"PCRs", r.PCRsValid},
		{"Certificate", r.CertificateValid},
		{"Signature", r.SignatureValid},
	}
}

func cmdKey(c *cli.Context) error {
	var keyResponse enclaveapi.KeyResponse
	if err := readJSON(c.String(flagAttestation), &keyResponse); err != nil {
		return cli.Exit(err, exitError)
	}
	if keyResponse.AttestationCOSEBase64 == "" {
		return cli.Exit("key response has no attestation_cose_base64", exitError)
	}
	publicKey, err := os.ReadFile(c.String(flagPublicKey))
	if err != nil {
		return cli.Exit(err, exitError)
	}
	opts, err := options(c)
	if err != nil {
		return cli.Exit(err, exitError)
	}

	result, err := validation.ValidateKeyAttestation(keyResponse.AttestationCOSEBase64, string(publicKey), opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("validation error: %v", err), exitError)
	}
	return emit(c, report{
		Title:   "Enclave Key Attestation",
		Valid:   result.IsValid(),
		Checks:  append(baseChecks(result.BaseValidationResult), row{"Public Key Match", result.PublicKeyMatch}),
		Details: result.ValidationDetails,
	})
}

func cmdCommit(c *cli.Context) error {
	var bid bidRecord
	if err := readJSON(c.String(flagBid), &bid); err != nil {
		return cli.Exit(err, exitError)
	}
	if bid.Attestation == "" {
		return cli.Exit("bid has no attestation; it was not committed through an enclave", exitError)
	}
	amount, err := core.ParseAmount(c.String(flagAmount))
	if err != nil {
		return cli.Exit(err, exitError)
	}
	opts, err := options(c)
	if err != nil {
		return cli.Exit(err, exitError)
	}

	result, err := validation.ValidateCommitAttestation(&validation.CommitValidationInput{
		Attestation: bid.Attestation,
		Auction:     bid.Auction,
		Bidder:      bid.Bidder,
		BidAddress:  bid.Address,
		Amount:      amount,
	}, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("validation error: %v", err), exitError)
	}
	return emit(c, report{
		Title: "Sealed Bid Commit Attestation",
		Valid: result.IsValid(),
		Checks: append(baseChecks(result.BaseValidationResult),
			row{"Binding", result.BindingValid},
			row{"Commit Hash", result.CommitHashValid}),
		Details: result.ValidationDetails,
	})
}

// emit prints the report and turns a failed validation into exit code 1.
func emit(c *cli.Context, r report) error {
	var err error
	if c.String(flagFormat) == "json" {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		err = enc.Encode(r)
	} else {
		err = writeText(c.App.Writer, r)
	}
	if err != nil {
		return cli.Exit(err, exitError)
	}
	if !r.Valid {
		return cli.Exit("", exitFailed)
	}
	return nil
}

func writeText(w io.Writer, r report) error {
	lines := []string{r.Title, "", "Details:"}
	for _, d := range r.Details {
		lines = append(lines, "  "+d)
	}
	lines = append(lines, "", "Summary:")
	for _, ch := range r.Checks {
		lines = append(lines, fmt.Sprintf("  %-18s %v", ch.Name+":", ch.OK))
	}
	verdict := "VALIDATION: ✗ FAILED"
	if r.Valid {
		verdict = "VALIDATION: ✓ PASSED"
	}
	lines = append(lines, "", verdict)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "attestation-validator"
	app.Usage = "verify sealedbid enclave attestations"
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: flagPCRs, Usage: "known PCR sets `FILE`", Value: "pcrs.json"},
		&cli.StringFlag{Name: flagFormat, Usage: "output `FORMAT`: text or json", Value: "text"},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "key",
			Usage:  "Check the enclave key that bid amounts are sealed to",
			Action: cmdKey,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagAttestation, Usage: "key response JSON `FILE`", Required: true},
				&cli.StringFlag{Name: flagPublicKey, Usage: "public key PEM `FILE`", Required: true},
			},
		},
		{
			Name:   "commit",
			Usage:  "Check that the enclave released your bid with the amount you submitted",
			Action: cmdCommit,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagBid, Usage: "bid account JSON `FILE` from GET /v1/auctions/{auction}/bids/{bidder}", Required: true},
				&cli.StringFlag{Name: flagAmount, Usage: "the `AMOUNT` you submitted", Required: true},
			},
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}
