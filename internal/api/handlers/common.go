package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/kbmirror/backend/internal/gateway"
	"github.com/kbmirror/backend/internal/storage/models"
	"github.com/kbmirror/backend/internal/storage/sqlite"
)

// GatewayFactory builds a remote API client for one instance. Handlers never
// construct gateways themselves so transport settings stay in one place.
type GatewayFactory func(inst *models.Instance) *gateway.Client

func notFound(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": what + " not found",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func internalError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}

// loadInstance resolves the :id path parameter into an instance row.
func loadInstance(c *fiber.Ctx, store *sqlite.Client) (*models.Instance, error) {
	inst, err := store.GetInstance(c.Params("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, notFound(c, "instance")
	}
	if err != nil {
		return nil, internalError(c, "failed to load instance")
	}
	return inst, nil
}

// loadDatasetChain resolves a dataset id into the dataset and its owning
// instance.
func loadDatasetChain(c *fiber.Ctx, store *sqlite.Client, datasetID string) (*models.Instance, *models.Dataset, error) {
	ds, err := store.GetDataset(datasetID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, nil, notFound(c, "dataset")
	}
	if err != nil {
		return nil, nil, internalError(c, "failed to load dataset")
	}

	inst, err := store.GetInstance(ds.InstanceID)
	if err != nil {
		return nil, nil, internalError(c, "failed to load instance")
	}
	return inst, ds, nil
}

// loadDocumentChain resolves a document id into document, dataset and
// instance.
func loadDocumentChain(c *fiber.Ctx, store *sqlite.Client, documentID string) (*models.Instance, *models.Dataset, *models.Document, error) {
	doc, err := store.GetDocument(documentID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, nil, nil, notFound(c, "document")
	}
	if err != nil {
		return nil, nil, nil, internalError(c, "failed to load document")
	}

	inst, ds, ferr := loadDatasetChain(c, store, doc.DatasetID)
	if ferr != nil {
		return nil, nil, nil, ferr
	}
	return inst, ds, doc, nil
}

func batchResultJSON(total, synced int, errs []error) fiber.Map {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}
	return fiber.Map{
		"total":  total,
		"synced": synced,
		"errors": messages,
	}
}
