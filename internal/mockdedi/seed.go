package mockdedi

// SeedDemo 创建演示用户及其命名空间，另有一个其他用户共享给演示用户的命名空间
func SeedDemo(store *Store, email, password string) (*User, error) {
	demo, err := store.AddUser(User{
		Username:       "demo",
		Firstname:      "Demo",
		Lastname:       "User",
		Email:          email,
		HashedPassword: hashPassword(password),
	})
	if err != nil {
		return nil, err
	}

	other, err := store.AddUser(User{
		Username:       "partner",
		Email:          "partner@example.com",
		HashedPassword: hashPassword(password),
	})
	if err != nil {
		return nil, err
	}

	for _, ns := range []struct{ name, description string }{
		{"payments", "Payment provider registry"},
		{"identity", "Identity and KYC records"},
	} {
		if _, err := store.CreateNamespace(demo.ID, ns.name, ns.description, nil); err != nil {
			return nil, err
		}
	}

	shared, err := store.CreateNamespace(other.ID, "partner-catalog", "Catalog shared by a partner", nil)
	if err != nil {
		return nil, err
	}
	if err := store.Delegate(shared.NamespaceID, demo.ID); err != nil {
		return nil, err
	}
	return demo, nil
}
