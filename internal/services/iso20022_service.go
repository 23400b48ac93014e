package services

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/procurepay/backend/internal/config"
	"github.com/procurepay/backend/internal/models"
)

const Pacs008MessageType = "pacs.008.001.08"

// ISO20022Service renders payment entries as pacs.008 credit transfers for
// the bank's bulk upload channel.
type ISO20022Service struct {
	companyName string
	companyBIC  string
	now         func() time.Time
}

func NewISO20022Service(cfg *config.SettlementConfig) *ISO20022Service {
	return &ISO20022Service{
		companyName: cfg.CompanyName,
		companyBIC:  cfg.CompanyBIC,
		now:         time.Now,
	}
}

// CreatePacs008 builds a credit transfer paying entry to the order's
// supplier. Reversals carry no transfer and are rejected.
func (iso *ISO20022Service) CreatePacs008(entry *models.PaymentEntry, order *models.Order) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if entry.Kind == models.PaymentKindReversal || !entry.Amount.IsPositive() {
		return nil, NewValidationError("entry %s is a reversal and has no credit transfer", entry.ID)
	}

	creDtTm := iso.now().UTC()
	settlementDate := creDtTm
	amount := pacs_v08.ActiveCurrencyAndAmount{
		Ccy:   common.ActiveCurrencyCode(order.Currency),
		Value: entry.Amount.InexactFloat64(),
	}
	entryID := common.Max35Text(truncate35(entry.ID))
	orderNumber := common.Max35Text(truncate35(order.Number))

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:             entryID,
			CreDtTm:           common.ISODateTime(creDtTm),
			NbOfTxs:           "1",
			TtlIntrBkSttlmAmt: &amount,
			IntrBkSttlmDt:     (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &entryID,
					EndToEndId: orderNumber,
					TxId:       &entryID,
				},
				IntrBkSttlmAmt: amount,
				IntrBkSttlmDt:  (*common.ISODate)(&settlementDate),
				ChrgBr:         "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(iso.companyBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(iso.companyName)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(truncate35(order.SupplierID)),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(order.SupplierID)}[0],
				},
			},
		},
	}

	return doc, nil
}

// ConvertToXML converts ISO20022 document to XML string
func (iso *ISO20022Service) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

// ExportPayment renders entry as pacs.008 XML.
func (iso *ISO20022Service) ExportPayment(entry *models.PaymentEntry, order *models.Order) (string, error) {
	doc, err := iso.CreatePacs008(entry, order)
	if err != nil {
		return "", err
	}
	return iso.ConvertToXML(doc)
}

func truncate35(s string) string {
	if len(s) > 35 {
		return s[:35]
	}
	return s
}
