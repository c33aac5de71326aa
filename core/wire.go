package core

// Processor request bodies. Field names and order are part of the signed
// content, so they must not change.

const (
	actionInquiry = "inquiry"
	actionPayment = "payment"
	actionAdvice  = "advice"
	actionBalance = "balance"
)

type processorBill struct {
	Periode int   `json:"Periode"`
	Total   int64 `json:"Total"`
}

type processorRequest struct {
	Action         string          `json:"Action"`
	ClientID       string          `json:"ClientId"`
	MCC            string          `json:"MCC,omitempty"`
	KodeProduk     string          `json:"KodeProduk"`
	SessionID      string          `json:"SessionId,omitempty"`
	NomorPelanggan string          `json:"NomorPelanggan,omitempty"`
	Tagihan        []processorBill `json:"Tagihan,omitempty"`
	TotalAdmin     *int64          `json:"TotalAdmin,omitempty"`
	Versi          string          `json:"Versi,omitempty"`
}

type reversalRequest struct {
	OriginalTransactionID string `json:"original_transaction_id"`
	Timestamp             string `json:"timestamp"`
	Channel               string `json:"channel"`
}

// processorReply is a decoded processor response.
type processorReply struct {
	httpStatus int
	fields     map[string]any
	code       string
	message    string
}

func toProcessorBills(bills []Bill) []processorBill {
	if len(bills) == 0 {
		return nil
	}
	out := make([]processorBill, 0, len(bills))
	for _, bill := range bills {
		out = append(out, processorBill{Periode: bill.Period, Total: bill.Amount})
	}
	return out
}

func decodeReply(resp TransportResponse) processorReply {
	fields := DecodeFields(resp.Body)
	return processorReply{
		httpStatus: resp.StatusCode,
		fields:     fields,
		code:       ReadStatusCode(fields),
		message:    ReadString(fields, messageKeys...),
	}
}
