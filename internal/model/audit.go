package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// System audit actions
const (
	ActionOpenFolio          = "OPEN_FOLIO"
	ActionCloseFolio         = "CLOSE_FOLIO"
	ActionPostCharge         = "POST_CHARGE"
	ActionPostPayment        = "POST_PAYMENT"
	ActionRouteCharge        = "ROUTE_CHARGE"
	ActionReconcileFolio     = "RECONCILE_FOLIO"
	ActionLinkFolio          = "LINK_FOLIO"
	ActionUnlinkFolio        = "UNLINK_FOLIO"
	ActionSetRoutingRules    = "SET_ROUTING_RULES"
	ActionCreateMasterFolio  = "CREATE_MASTER_FOLIO"
	ActionCloseMasterFolio   = "CLOSE_MASTER_FOLIO"
	ActionReopenMasterFolio  = "REOPEN_MASTER_FOLIO"
	ActionSuspendMasterFolio = "SUSPEND_MASTER_FOLIO"

	ActionCreateTaxDefinition = "CREATE_TAX_DEFINITION"
	ActionUpdateTaxDefinition = "UPDATE_TAX_DEFINITION"
	ActionDeleteTaxDefinition = "DELETE_TAX_DEFINITION"
	ActionUpdateServiceCharge = "UPDATE_SERVICE_CHARGE"

	ActionCreateInvoice = "CREATE_INVOICE"
	ActionPostInvoice   = "POST_INVOICE"
	ActionCancelInvoice = "CANCEL_INVOICE"
	ActionIssueNote     = "ISSUE_NOTE"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nullable for system-originated entries
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // reference string (uuid/number)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
