// package models defines the data model for the tunesync download service
package models

import (
	"time"
)

// Model defines the base interface for all persistent models in the download service.
// Implementations include Subscription.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error // Create inserts a new model into the database
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error // Delete soft-deletes a model by its ID
	List() ([]T, error)     // List retrieves all live models, oldest first
}
