package main

import (
	"fmt"

	"github.com/shelfline-next/internal/provider"
	"github.com/shelfline-next/internal/service"

	"github.com/spf13/cobra"
)

type seedOffer struct {
	name       string
	brand      string
	sizeGroup  string
	required   int
	window     int
	variations []service.VariationAssignInput
}

// demoOffers 本地演示数据
var demoOffers = []seedOffer{
	{
		name:      "Buy 10 Large Coffee",
		brand:     "House Roast",
		sizeGroup: "16oz",
		required:  10,
		window:    12,
		variations: []service.VariationAssignInput{
			{VariationID: "VAR-COFFEE-16-DARK", ItemID: "ITEM-COFFEE", VariationName: "16oz Dark", ItemName: "Drip Coffee"},
			{VariationID: "VAR-COFFEE-16-LIGHT", ItemID: "ITEM-COFFEE", VariationName: "16oz Light", ItemName: "Drip Coffee"},
		},
	},
	{
		name:      "Buy 6 Sourdough",
		brand:     "Bakery",
		sizeGroup: "loaf",
		required:  6,
		window:    6,
		variations: []service.VariationAssignInput{
			{VariationID: "VAR-SOURDOUGH-LOAF", ItemID: "ITEM-SOURDOUGH", VariationName: "Loaf", ItemName: "Sourdough"},
		},
	},
}

func seedCmd() *cobra.Command {
	var merchantID string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "写入演示活动与关联规格",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *provider.Container) error {
				for _, item := range demoOffers {
					offer, err := c.OfferService.Create(service.OfferInput{
						MerchantID:       merchantID,
						Name:             item.name,
						BrandName:        item.brand,
						SizeGroup:        item.sizeGroup,
						RequiredQuantity: item.required,
						WindowMonths:     item.window,
						ActorID:          "seed",
					})
					if err != nil {
						return fmt.Errorf("create offer %q: %w", item.name, err)
					}
					for _, variation := range item.variations {
						variation.MerchantID = merchantID
						variation.OfferID = offer.ID
						if _, err := c.OfferService.AssignVariation(cmd.Context(), variation); err != nil {
							return fmt.Errorf("assign %s to offer %d: %w", variation.VariationID, offer.ID, err)
						}
					}
					fmt.Printf("seeded offer %d %q with %d variations\n", offer.ID, offer.Name, len(item.variations))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&merchantID, "merchant", "demo-merchant", "商户 ID")
	return cmd
}
