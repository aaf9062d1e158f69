package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/readypush/newsletter-push/internal/domain"
	"github.com/readypush/newsletter-push/internal/provider"
)

type CatalogService interface {
	Lists(ctx context.Context) ([]domain.SubscriberList, error)
	Addresses(ctx context.Context) ([]domain.MailingAddress, error)
}

type CatalogHandler struct {
	service CatalogService
}

func NewCatalogHandler(service CatalogService) (*CatalogHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("catalog service is required")
	}
	return &CatalogHandler{service: service}, nil
}

func RegisterCatalogRoutes(router fiber.Router, service CatalogService) error {
	h, err := NewCatalogHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/lists", h.GetLists)
	v1.Get("/addresses", h.GetAddresses)

	return nil
}

type subscriberListItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	SubscriberCount int    `json:"subscriberCount"`
}

type mailingAddressItem struct {
	ID          string `json:"id"`
	CompanyName string `json:"companyName,omitempty"`
	Display     string `json:"display"`
}

func (h *CatalogHandler) GetLists(c *fiber.Ctx) error {
	lists, err := h.service.Lists(c.Context())
	if err != nil {
		return toCatalogHTTPError(err)
	}

	items := make([]subscriberListItem, 0, len(lists))
	for _, list := range lists {
		items = append(items, subscriberListItem{
			ID:              list.ID,
			Name:            list.Name,
			SubscriberCount: list.SubscriberCount,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": items})
}

func (h *CatalogHandler) GetAddresses(c *fiber.Ctx) error {
	addresses, err := h.service.Addresses(c.Context())
	if err != nil {
		return toCatalogHTTPError(err)
	}

	items := make([]mailingAddressItem, 0, len(addresses))
	for _, address := range addresses {
		items = append(items, mailingAddressItem{
			ID:          address.ID,
			CompanyName: address.CompanyName,
			Display:     address.Display,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": items})
}

// toCatalogHTTPError maps upstream provider failures onto gateway-flavored
// statuses so an API consumer can tell a provider outage from a local bug.
func toCatalogHTTPError(err error) error {
	switch provider.KindOf(err) {
	case provider.KindAuth:
		return fiber.NewError(fiber.StatusBadGateway, "provider rejected credentials")
	case provider.KindRateLimited:
		return fiber.NewError(fiber.StatusServiceUnavailable, "provider rate limit exceeded")
	case provider.KindTransport:
		return fiber.NewError(fiber.StatusGatewayTimeout, "provider unreachable")
	default:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}
