package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func TestValidateRouting(t *testing.T) {
	warehouseA := strPtr("11111111-1111-4111-8111-111111111111")
	warehouseB := strPtr("22222222-2222-4222-8222-222222222222")
	supplier := strPtr("33333333-3333-4333-8333-333333333333")
	department := strPtr("44444444-4444-4444-8444-444444444444")

	tests := []struct {
		name    string
		txn     Transaction
		wantErr bool
	}{
		{
			name:    "inbound with dest and supplier",
			txn:     Transaction{Type: TypeInbound, DestWarehouseID: warehouseA, SupplierID: supplier},
			wantErr: false,
		},
		{
			name:    "inbound missing supplier",
			txn:     Transaction{Type: TypeInbound, DestWarehouseID: warehouseA},
			wantErr: true,
		},
		{
			name:    "inbound with stray source warehouse",
			txn:     Transaction{Type: TypeInbound, DestWarehouseID: warehouseA, SupplierID: supplier, SourceWarehouseID: warehouseB},
			wantErr: true,
		},
		{
			name:    "outbound with source and department",
			txn:     Transaction{Type: TypeOutbound, SourceWarehouseID: warehouseA, DepartmentID: department},
			wantErr: false,
		},
		{
			name:    "outbound missing department",
			txn:     Transaction{Type: TypeOutbound, SourceWarehouseID: warehouseA},
			wantErr: true,
		},
		{
			name:    "outbound with stray destination",
			txn:     Transaction{Type: TypeOutbound, SourceWarehouseID: warehouseA, DepartmentID: department, DestWarehouseID: warehouseB},
			wantErr: true,
		},
		{
			name:    "transfer between distinct warehouses",
			txn:     Transaction{Type: TypeTransfer, SourceWarehouseID: warehouseA, DestWarehouseID: warehouseB},
			wantErr: false,
		},
		{
			name:    "transfer to the same warehouse",
			txn:     Transaction{Type: TypeTransfer, SourceWarehouseID: warehouseA, DestWarehouseID: warehouseA},
			wantErr: true,
		},
		{
			name:    "transfer missing destination",
			txn:     Transaction{Type: TypeTransfer, SourceWarehouseID: warehouseA},
			wantErr: true,
		},
		{
			name:    "adjustment carries no constraint",
			txn:     Transaction{Type: TypeAdjustment},
			wantErr: false,
		},
		{
			name:    "unknown type",
			txn:     Transaction{Type: "MYSTERY"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.txn.ValidateRouting()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
