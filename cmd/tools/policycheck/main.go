package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/format"
	"github.com/noah-isme/toko-storefront/internal/policy"
)

// policycheck loads a policy document, validates it and prints every policy. With
// -product it also prices a sample checkout against the product file.
// Exit code 0 = ok, 1 = invalid document, 2 = other error.
func main() {
	var (
		productsFile = flag.String("products", "", "product seed file (defaults to PRODUCTS_FILE or the built-in catalog)")
		sample       = flag.String("product", "", "sample quote item as <id>:<qty>, repeatable via commas")
		promotion    = flag.String("promotion", "", "promotion id for the sample quote; empty picks the best")
		tax          = flag.String("tax", "", "tax policy id for the sample quote")
		shipping     = flag.String("shipping", "", "shipping policy id for the sample quote")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "policycheck: %v\n", err)
		os.Exit(2)
	}

	path := cfg.PolicyFile
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	static, err := policy.LoadStatic(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := printPolicies(ctx, static); err != nil {
		fmt.Fprintf(os.Stderr, "policycheck: %v\n", err)
		os.Exit(2)
	}

	if strings.TrimSpace(*sample) == "" {
		fmt.Println("policycheck: OK")
		return
	}

	items, err := parseItems(*sample)
	if err != nil {
		fmt.Fprintf(os.Stderr, "policycheck: %v\n", err)
		os.Exit(2)
	}
	if *productsFile == "" {
		*productsFile = cfg.ProductsFile
	}
	products, err := catalog.LoadRepository(*productsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "policycheck: %v\n", err)
		os.Exit(2)
	}
	svc, err := checkout.NewService(checkout.ServiceConfig{
		Policies:              static,
		Products:              products,
		DefaultTaxPolicy:      cfg.DefaultTaxPolicy,
		DefaultShippingPolicy: cfg.DefaultShippingPolicy,
		Logger:                zerolog.Nop(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "policycheck: %v\n", err)
		os.Exit(2)
	}
	quote, err := svc.QuoteItems(ctx, items, checkout.Selection{
		PromotionID:      *promotion,
		TaxPolicyID:      *tax,
		ShippingPolicyID: *shipping,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "quote failed: %v\n", err)
		os.Exit(1)
	}
	printQuote(quote, cfg.CurrencyCode)
	fmt.Println("policycheck: OK")
}

func printPolicies(ctx context.Context, c policy.Catalog) error {
	promotions, err := c.ListPromotions(ctx)
	if err != nil {
		return err
	}
	taxes, err := c.ListTaxPolicies(ctx)
	if err != nil {
		return err
	}
	shipping, err := c.ListShippingPolicies(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tID\tNAME\tTYPE\tPARAMS")
	for _, p := range promotions {
		d := policy.DescribePromotion(p)
		fmt.Fprintf(tw, "promotion\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Type, optional("value", d.Value))
	}
	for _, t := range taxes {
		d := policy.DescribeTaxPolicy(t)
		params := optional("rate", d.Rate)
		if d.DigitalOnly {
			params += " digitalOnly"
		}
		fmt.Fprintf(tw, "tax\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Type, strings.TrimSpace(params))
	}
	for _, s := range shipping {
		d := policy.DescribeShippingPolicy(s)
		params := fmt.Sprintf("cost=%g %s", d.Cost, optional("threshold", d.Threshold))
		fmt.Fprintf(tw, "shipping\t%s\t%s\t-\t%s\n", d.ID, d.Name, strings.TrimSpace(params))
	}
	return tw.Flush()
}

func printQuote(q checkout.Quote, currency string) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw)
	for _, line := range q.Lines {
		fmt.Fprintf(tw, "%s x%d\t%s\t\n", line.ProductName, line.Quantity, format.Money(line.DiscountedPrice, currency))
	}
	fmt.Fprintf(tw, "promotion %s\t-%s\t\n", q.Promotion.ID, format.Money(q.DiscountAmount, currency))
	fmt.Fprintf(tw, "tax %s\t%s\t\n", q.TaxPolicy.ID, format.Money(q.TaxAmount, currency))
	fmt.Fprintf(tw, "shipping %s\t%s\t\n", q.ShippingPolicy.ID, format.Money(q.ShippingCost, currency))
	fmt.Fprintf(tw, "total\t%s\t\n", format.Money(q.Total, currency))
	_ = tw.Flush()
}

func parseItems(raw string) ([]checkout.ItemRequest, error) {
	var items []checkout.ItemRequest
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, qtyRaw, found := strings.Cut(part, ":")
		qty := 1
		if found {
			n, err := strconv.Atoi(strings.TrimSpace(qtyRaw))
			if err != nil {
				return nil, fmt.Errorf("item %q: quantity: %w", part, err)
			}
			qty = n
		}
		items = append(items, checkout.ItemRequest{ProductID: strings.TrimSpace(id), Quantity: qty})
	}
	return items, nil
}

func optional(name string, v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%s=%g", name, *v)
}
