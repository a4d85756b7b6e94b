package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/model"
)

const fixture = "../../internal/pool/testdata/pools.yaml"

func execute(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(append([]string{"--pools-file", fixture, "--log-level", "error"}, args...))
	root.SetOut(&out)
	root.SetErr(io.Discard)
	return &out, root.Execute()
}

func TestQuoteCommand(t *testing.T) {
	out, err := execute(t, "quote", "USDC", "WETH", "2000")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	var view quoteView
	if err := json.Unmarshal(out.Bytes(), &view); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if view.AmountIn.String() != "2000000000" {
		t.Fatalf("amount in should be scaled by 6 decimals: %s", view.AmountIn)
	}
	if view.AmountOut.String() != "996006981039903216" {
		t.Fatalf("unexpected amount out: %s", view.AmountOut)
	}
	if view.AmountOutMin.String() != "991026946134703700" {
		t.Fatalf("unexpected minimum: %s", view.AmountOutMin)
	}
	if view.Display.AmountOut != "0.9960" || view.Display.AmountIn != "2000.0000" {
		t.Fatalf("unexpected display: %+v", view.Display)
	}
}

func TestQuoteCommandUnknownPair(t *testing.T) {
	_, err := execute(t, "quote", "USDC", "0x9999999999999999999999999999999999999999", "1")
	if !errors.Is(err, ammerr.ErrPairNotFound) {
		t.Fatalf("expected pair not found, got %v", err)
	}
}

func TestQuoteCommandRejectsTradeType(t *testing.T) {
	_, err := execute(t, "quote", "USDC", "WETH", "1", "--trade-type", "sideways")
	if !errors.Is(err, ammerr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLiquidityCommand(t *testing.T) {
	out, err := execute(t, "liquidity", "USDC", "WETH", "1000")
	if err != nil {
		t.Fatalf("liquidity: %v", err)
	}
	var view liquidityView
	if err := json.Unmarshal(out.Bytes(), &view); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if view.AmountB.String() != "500000000000000000" || view.EstimatedLPTokens.String() != "22360679774" {
		t.Fatalf("unexpected quote: b=%s lp=%s", view.AmountB, view.EstimatedLPTokens)
	}
	if view.Display["amount_b"] != "0.5000" {
		t.Fatalf("unexpected display: %v", view.Display)
	}
}

func TestPositionCommand(t *testing.T) {
	out, err := execute(t, "position", "WETH", "USDC", "0x3333333333333333333333333333333333333333")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	var pos model.Position
	if err := json.Unmarshal(out.Bytes(), &pos); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if pos.Amount0.String() != "199999999999" || pos.Amount1.String() != "99999999999988819660" {
		t.Fatalf("unexpected amounts: %s %s", pos.Amount0, pos.Amount1)
	}
}

func TestSpotCommand(t *testing.T) {
	out, err := execute(t, "spot", "USDC", "WETH")
	if err != nil {
		t.Fatalf("spot: %v", err)
	}
	var view spotView
	if err := json.Unmarshal(out.Bytes(), &view); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	// 1 WETH = 2000 USDC
	if view.Display.Price0Per1 != "2000.000000" || view.Display.Price1Per0 != "0.000500" {
		t.Fatalf("unexpected display: %+v", view.Display)
	}
}

func TestTWAPCommandWritesSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.jsonl")
	out, err := execute(t, "twap", "USDC", "WETH", "--samples", "2", "--interval", "10ms", "--out", path)
	if err != nil {
		t.Fatalf("twap: %v", err)
	}

	dec := json.NewDecoder(out)
	printed := 0
	for dec.More() {
		var sample model.TWAPSample
		if err := dec.Decode(&sample); err != nil {
			t.Fatalf("decode sample: %v", err)
		}
		if sample.PoolID != "usdc-weth" || sample.Cached < 1 {
			t.Fatalf("unexpected sample: %+v", sample)
		}
		printed++
	}
	if printed != 2 {
		t.Fatalf("expected 2 printed samples, got %d", printed)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open samples: %v", err)
	}
	defer file.Close()
	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 stored samples, got %d", lines)
	}
}

func TestMissingBackend(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"quote", "A", "B", "1"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err == nil {
		t.Fatalf("expected an error without a backend")
	}
}

func TestBestCommandFallsBackToDirect(t *testing.T) {
	out, err := execute(t, "best", "USDC", "WETH", "2000", "--via", "0x9999999999999999999999999999999999999999")
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	var view quoteView
	if err := json.Unmarshal(out.Bytes(), &view); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(view.Path) != 2 || view.AmountOut.String() != "996006981039903216" {
		t.Fatalf("expected the direct route: %v %s", view.Path, view.AmountOut)
	}
}

func TestRemoveCommand(t *testing.T) {
	out, err := execute(t, "remove", "USDC", "WETH", "4472135954999", "--slippage-bps", "100")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	var view removeView
	if err := json.Unmarshal(out.Bytes(), &view); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if view.AmountA.String() != "199999999999" || view.AmountB.String() != "99999999999988819660" {
		t.Fatalf("unexpected amounts: %s %s", view.AmountA, view.AmountB)
	}
	// 1% below
	if view.AmountAMin.String() != "198000000000" {
		t.Fatalf("unexpected minimum: %s", view.AmountAMin)
	}
}
